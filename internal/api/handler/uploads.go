package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/dnaspecies/internal/api/response"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
)

// multipartOverhead is allowed on top of the file size limit for form framing.
const multipartOverhead = 1 << 20

// Sessions is the registry of live upload sessions.
type Sessions interface {
	Create() *workflow.Session
	Get(id uuid.UUID) (*workflow.Session, bool)
	Remove(id uuid.UUID) bool
}

// NewCreateUploadHandler returns an http.HandlerFunc for POST /api/v1/uploads.
// The form carries the sequence file as "file" and an optional cluster count "k".
func NewCreateUploadHandler(sessions Sessions, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					"Uploaded file is too large", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		k := 0
		if raw := r.FormValue("k"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "k must be a positive integer", nil)
				return
			}
			k = n
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read uploaded file", nil)
			return
		}

		sess := sessions.Create()
		sess.SetRequestedK(k)

		_, err = sess.Upload(r.Context(), workflow.File{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Content:  content,
		})
		if err != nil {
			sessions.Remove(sess.ID)
			writeWorkflowError(w, err)
			return
		}

		response.Accepted(w, sess.Snapshot())
	}
}

// NewGetUploadHandler returns an http.HandlerFunc for GET /api/v1/uploads/{sessionID}.
func NewGetUploadHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookupSession(w, r, sessions)
		if !ok {
			return
		}
		response.JSON(w, sess.Snapshot())
	}
}

// NewDeleteUploadHandler returns an http.HandlerFunc for DELETE /api/v1/uploads/{sessionID}.
// Polling is cancelled and the session forgotten.
func NewDeleteUploadHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		if !sessions.Remove(id) {
			response.Error(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Upload session not found", nil)
			return
		}
		response.NoContent(w)
	}
}

// NewDismissWarningHandler returns an http.HandlerFunc for
// POST /api/v1/uploads/{sessionID}/warning/dismiss.
func NewDismissWarningHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookupSession(w, r, sessions)
		if !ok {
			return
		}
		sess.DismissWarning()
		response.JSON(w, sess.Snapshot())
	}
}

// NewDetailsHandler returns an http.HandlerFunc for GET /api/v1/uploads/{sessionID}/details.
func NewDetailsHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookupSession(w, r, sessions)
		if !ok {
			return
		}
		name, body, err := sess.Details()
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		response.Attachment(w, name, "application/json", body)
	}
}

// NewDownloadHandler returns an http.HandlerFunc for GET /api/v1/uploads/{sessionID}/download.
// The archive is streamed through; errors before the first byte are reported as JSON.
func NewDownloadHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookupSession(w, r, sessions)
		if !ok {
			return
		}
		runID := sess.RunID()
		if runID == "" {
			writeWorkflowError(w, workflow.ErrNoRunID)
			return
		}

		aw := response.NewAttachmentWriter(w, workflow.ArchiveFilename(runID), "application/zip")
		_, n, err := sess.DownloadArchive(r.Context(), aw)
		if err != nil {
			if aw.Started() {
				slog.Warn("archive download interrupted", "session_id", sess.ID, "run_id", runID,
					"bytes", n, "error", err)
				return
			}
			writeWorkflowError(w, err)
			return
		}
		if !aw.Started() {
			response.SetAttachment(w, workflow.ArchiveFilename(runID), "application/zip")
			w.WriteHeader(http.StatusOK)
		}
	}
}

type runIDResponse struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// NewRunIDHandler returns an http.HandlerFunc for GET /api/v1/uploads/{sessionID}/run-id.
func NewRunIDHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookupSession(w, r, sessions)
		if !ok {
			return
		}
		runID, err := sess.CopyRunID()
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		response.JSON(w, runIDResponse{RunID: runID, Message: sess.Snapshot().Warning})
	}
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "sessionID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func lookupSession(w http.ResponseWriter, r *http.Request, sessions Sessions) (*workflow.Session, bool) {
	id, ok := sessionID(w, r)
	if !ok {
		return nil, false
	}
	sess, ok := sessions.Get(id)
	if !ok {
		response.Error(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Upload session not found", nil)
		return nil, false
	}
	return sess, true
}
