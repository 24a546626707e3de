package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/dnaspecies/internal/api/response"
	"github.com/kiranshivaraju/dnaspecies/internal/backend"
	"github.com/kiranshivaraju/dnaspecies/internal/intake"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
)

// writeWorkflowError maps workflow and backend failures to error envelopes.
// The message is the same text the session shows in its error slot.
func writeWorkflowError(w http.ResponseWriter, err error) {
	msg := workflow.Message(err)
	switch {
	case errors.Is(err, intake.ErrEmptyFile):
		response.Error(w, http.StatusBadRequest, "INVALID_FILE", msg, nil)
	case errors.Is(err, intake.ErrFileTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", msg, nil)
	case errors.Is(err, backend.ErrBackendTimeout):
		response.Error(w, http.StatusGatewayTimeout, "BACKEND_TIMEOUT", msg, nil)
	case errors.Is(err, backend.ErrBackendUnreachable):
		response.Error(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE", msg, nil)
	case errors.Is(err, backend.ErrMissingRunID), errors.Is(err, backend.ErrSubmissionFailed):
		response.Error(w, http.StatusBadGateway, "SUBMISSION_FAILED", msg, nil)
	case errors.Is(err, backend.ErrRequestFailed):
		response.Error(w, http.StatusBadGateway, "BACKEND_REQUEST_FAILED", msg, nil)
	case errors.Is(err, workflow.ErrNoFile):
		response.Error(w, http.StatusConflict, "NO_FILE", "No file selected", nil)
	case errors.Is(err, workflow.ErrNoRunID):
		response.Error(w, http.StatusConflict, "NO_RUN_ID", msg, nil)
	case errors.Is(err, workflow.ErrAborted):
		response.Error(w, http.StatusConflict, "ABORTED", msg, nil)
	default:
		slog.Error("unhandled workflow error", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
