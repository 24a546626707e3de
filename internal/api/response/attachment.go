package response

import (
	"mime"
	"net/http"
	"strconv"
)

// SetAttachment sets the headers that make a browser save the body as filename.
func SetAttachment(w http.ResponseWriter, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

// Attachment writes body as a downloadable file.
func Attachment(w http.ResponseWriter, filename, contentType string, body []byte) {
	SetAttachment(w, filename, contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// AttachmentWriter defers the attachment headers until the first byte is
// written, so a failure before any data can still be reported as JSON.
type AttachmentWriter struct {
	w           http.ResponseWriter
	filename    string
	contentType string
	started     bool
}

func NewAttachmentWriter(w http.ResponseWriter, filename, contentType string) *AttachmentWriter {
	return &AttachmentWriter{w: w, filename: filename, contentType: contentType}
}

func (a *AttachmentWriter) Write(p []byte) (int, error) {
	if !a.started {
		a.started = true
		SetAttachment(a.w, a.filename, a.contentType)
		a.w.WriteHeader(http.StatusOK)
	}
	return a.w.Write(p)
}

// Started reports whether any body bytes have been sent.
func (a *AttachmentWriter) Started() bool { return a.started }
