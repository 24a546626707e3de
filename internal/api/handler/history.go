package handler

import (
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/dnaspecies/internal/api/response"
	"github.com/kiranshivaraju/dnaspecies/internal/store"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

var historyStatuses = map[string]bool{
	models.UploadStatusSubmitted: true,
	models.UploadStatusRunning:   true,
	models.UploadStatusCompleted: true,
	models.UploadStatusFailed:    true,
	models.UploadStatusTimedOut:  true,
	models.UploadStatusAborted:   true,
}

// NewListUploadsHandler returns an http.HandlerFunc for GET /api/v1/uploads.
// Query parameters: page (1), limit (20, at most 100), status.
func NewListUploadsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, err := intParam(q.Get("page"), 1)
		if err != nil || page < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
			return
		}
		limit, err := intParam(q.Get("limit"), 20)
		if err != nil || limit < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
			return
		}
		limit = min(limit, 100)

		status := q.Get("status")
		if status != "" && !historyStatuses[status] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown status "+strconv.Quote(status), nil)
			return
		}

		uploads, total, err := st.ListUploads(r.Context(), store.UploadFilter{
			Status: status,
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Collection(w, uploads, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
