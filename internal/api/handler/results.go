package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/dnaspecies/internal/api/response"
	"github.com/kiranshivaraju/dnaspecies/internal/cache"
	"github.com/kiranshivaraju/dnaspecies/internal/store"
)

type runResultResponse struct {
	Upload any             `json:"upload,omitempty"`
	Result json.RawMessage `json:"result"`
}

// NewRunResultHandler returns an http.HandlerFunc for GET /api/v1/runs/{runID}/results.
// It serves the cached result set of a finished run together with its
// upload history entry when one exists.
func NewRunResultHandler(c cache.Cache, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runID")
		if runID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "runID is required", nil)
			return
		}

		data, ok, err := c.GetResult(r.Context(), runID)
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE",
				"Result cache is not available", nil)
			return
		}
		if !ok {
			response.Error(w, http.StatusNotFound, "RESULT_NOT_FOUND",
				"No cached results for run "+runID, nil)
			return
		}

		out := runResultResponse{Result: data}
		upload, err := st.GetUploadByRunID(r.Context(), runID)
		switch {
		case err == nil:
			out.Upload = upload
		case !errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, out)
	}
}
