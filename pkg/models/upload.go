// Package models contains shared data models used across the DNASpecies codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	UploadStatusPending   = "pending"
	UploadStatusSubmitted = "submitted"
	UploadStatusRunning   = "running"
	UploadStatusCompleted = "completed"
	UploadStatusFailed    = "failed"
	UploadStatusTimedOut  = "timed_out"
	UploadStatusAborted   = "aborted"
)

// IsTerminalUploadStatus reports whether no further transitions are possible.
func IsTerminalUploadStatus(status string) bool {
	switch status {
	case UploadStatusCompleted, UploadStatusFailed, UploadStatusTimedOut, UploadStatusAborted:
		return true
	}
	return false
}

// UploadJob tracks one submission lifecycle: file selection, validation,
// submission to the prediction backend and polling. A RunID exists only once
// the backend accepted the submission.
type UploadJob struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	FileName     string     `db:"filename"      json:"filename"`
	MimeType     string     `db:"mime_type"     json:"mime_type"`
	SizeBytes    int64      `db:"size_bytes"    json:"size_bytes"`
	Kind         string     `db:"kind"          json:"kind"`
	RecordCount  int        `db:"record_count"  json:"record_count"`
	RequestedK   int        `db:"requested_k"   json:"requested_k"`
	ClusterK     int        `db:"cluster_k"     json:"cluster_k"`
	RunID        string     `db:"run_id"        json:"run_id,omitempty"`
	ModelID      string     `db:"model_id"      json:"model_id,omitempty"`
	ModelUsed    string     `db:"model_used"    json:"model_used,omitempty"`
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	SelectedAt   time.Time  `db:"selected_at"   json:"selected_at"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}
