package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/dnaspecies/internal/api/middleware"
	"github.com/kiranshivaraju/dnaspecies/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	ModelsHandler   http.HandlerFunc
	CreateUpload    http.HandlerFunc
	ListUploads     http.HandlerFunc
	GetUpload       http.HandlerFunc
	DeleteUpload    http.HandlerFunc
	DismissWarning  http.HandlerFunc
	DetailsHandler  http.HandlerFunc
	DownloadHandler http.HandlerFunc
	RunIDHandler    http.HandlerFunc
	RunResults      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/models", orNotImplemented(deps.ModelsHandler))

	r.Route("/api/v1/uploads", func(r chi.Router) {
		r.Get("/", orNotImplemented(deps.ListUploads))

		// Submissions hit the prediction backend; limit them per client.
		r.Group(func(r chi.Router) {
			if deps.RateLimit != nil {
				r.Use(deps.RateLimit.Limit)
			}
			r.Post("/", orNotImplemented(deps.CreateUpload))
		})

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.GetUpload))
			r.Delete("/", orNotImplemented(deps.DeleteUpload))
			r.Post("/warning/dismiss", orNotImplemented(deps.DismissWarning))
			r.Get("/details", orNotImplemented(deps.DetailsHandler))
			r.Get("/download", orNotImplemented(deps.DownloadHandler))
			r.Get("/run-id", orNotImplemented(deps.RunIDHandler))
		})
	})

	r.Get("/api/v1/runs/{runID}/results", orNotImplemented(deps.RunResults))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
