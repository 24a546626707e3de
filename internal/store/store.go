package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid upload status transition")

// Store is the data access interface for upload history.
type Store interface {
	Ping(ctx context.Context) error

	CreateUpload(ctx context.Context, job *models.UploadJob) error
	GetUpload(ctx context.Context, id uuid.UUID) (*models.UploadJob, error)
	GetUploadByRunID(ctx context.Context, runID string) (*models.UploadJob, error)
	ListUploads(ctx context.Context, filter UploadFilter) ([]*models.UploadJob, int, error)
	UpdateUploadStatus(ctx context.Context, id uuid.UUID, status string, opts ...UpdateOption) error
}

// UploadFilter narrows ListUploads. A zero Status matches every status.
type UploadFilter struct {
	Status string
	Page   int
	Limit  int
}

type updateParams struct {
	ErrorMessage *string
	ModelUsed    *string
	CompletedAt  *time.Time
}

type UpdateOption func(*updateParams)

func WithErrorMessage(msg string) UpdateOption {
	return func(p *updateParams) {
		p.ErrorMessage = &msg
	}
}

func WithModelUsed(model string) UpdateOption {
	return func(p *updateParams) {
		p.ModelUsed = &model
	}
}

// WithCompletedAt overrides the completion time recorded for terminal statuses.
func WithCompletedAt(t time.Time) UpdateOption {
	return func(p *updateParams) {
		t = t.UTC()
		p.CompletedAt = &t
	}
}
