package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/dnaspecies/internal/api/response"
	"github.com/kiranshivaraju/dnaspecies/internal/backend"
	"github.com/kiranshivaraju/dnaspecies/internal/cache"
)

// ModelLister is the part of the backend client the models endpoint needs.
type ModelLister interface {
	ListModels(ctx context.Context) ([]backend.Model, error)
}

// NewModelsHandler returns an http.HandlerFunc for GET /api/v1/models.
// The backend's list is cached for ttl; a zero ttl disables caching.
func NewModelsHandler(lister ModelLister, c cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if ttl > 0 {
			if data, ok, err := c.Get(ctx, cache.ModelsKey()); err == nil && ok {
				var cached []backend.Model
				if err := json.Unmarshal(data, &cached); err == nil {
					response.JSON(w, cached)
					return
				}
			}
		}

		list, err := lister.ListModels(ctx)
		if err != nil {
			switch {
			case errors.Is(err, backend.ErrBackendTimeout):
				response.Error(w, http.StatusGatewayTimeout, "BACKEND_TIMEOUT",
					"The prediction backend took too long to respond", nil)
			case errors.Is(err, backend.ErrBackendUnreachable):
				response.Error(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE",
					"The prediction backend is not available", nil)
			default:
				response.Error(w, http.StatusBadGateway, "BACKEND_REQUEST_FAILED", err.Error(), nil)
			}
			return
		}
		if list == nil {
			list = []backend.Model{}
		}

		if ttl > 0 {
			if data, err := json.Marshal(list); err == nil {
				if err := c.Set(ctx, cache.ModelsKey(), data, ttl); err != nil {
					slog.Warn("caching model list", "error", err)
				}
			}
		}

		response.JSON(w, list)
	}
}
