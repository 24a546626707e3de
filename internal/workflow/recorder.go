package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/dnaspecies/internal/cache"
	"github.com/kiranshivaraju/dnaspecies/internal/store"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// Recorder observes upload lifecycle events. Implementations must not block
// for long; failures are theirs to log.
type Recorder interface {
	Submitted(ctx context.Context, job models.UploadJob)
	StatusChanged(ctx context.Context, job models.UploadJob)
	Resolved(ctx context.Context, job models.UploadJob, rs *models.ResultSet)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) Submitted(context.Context, models.UploadJob)                     {}
func (NopRecorder) StatusChanged(context.Context, models.UploadJob)                 {}
func (NopRecorder) Resolved(context.Context, models.UploadJob, *models.ResultSet) {}

// StoreRecorder writes upload history to the store and caches the latest
// status and resolved result sets.
type StoreRecorder struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewStoreRecorder creates a StoreRecorder. ttl bounds cached entries.
func NewStoreRecorder(st store.Store, ca cache.Cache, ttl time.Duration) *StoreRecorder {
	return &StoreRecorder{store: st, cache: ca, ttl: ttl}
}

func (r *StoreRecorder) Submitted(ctx context.Context, job models.UploadJob) {
	if err := r.store.CreateUpload(ctx, &job); err != nil {
		slog.Error("recording upload", "upload_id", job.ID, "error", err)
		return
	}
	_ = r.cache.SetUploadStatus(ctx, job.ID, job.Status, r.ttl)
}

func (r *StoreRecorder) StatusChanged(ctx context.Context, job models.UploadJob) {
	opts := []store.UpdateOption{}
	if job.ErrorMessage != nil {
		opts = append(opts, store.WithErrorMessage(*job.ErrorMessage))
	}
	if job.ModelUsed != "" {
		opts = append(opts, store.WithModelUsed(job.ModelUsed))
	}
	if job.CompletedAt != nil {
		opts = append(opts, store.WithCompletedAt(*job.CompletedAt))
	}

	if err := r.store.UpdateUploadStatus(ctx, job.ID, job.Status, opts...); err != nil {
		slog.Error("updating upload status", "upload_id", job.ID, "status", job.Status, "error", err)
	}
	_ = r.cache.SetUploadStatus(ctx, job.ID, job.Status, r.ttl)
}

func (r *StoreRecorder) Resolved(ctx context.Context, job models.UploadJob, rs *models.ResultSet) {
	data, err := json.Marshal(rs)
	if err != nil {
		slog.Error("encoding result set", "run_id", job.RunID, "error", err)
		return
	}
	if err := r.cache.SetResult(ctx, job.RunID, data, r.ttl); err != nil {
		slog.Warn("caching result set", "run_id", job.RunID, "error", err)
	}
}
