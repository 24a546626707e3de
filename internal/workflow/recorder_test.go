package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dnaspecies/internal/store"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock store ---

type mockStore struct {
	created   []*models.UploadJob
	updates   []string
	optCounts []int
	createErr error
}

func (m *mockStore) Ping(_ context.Context) error { return nil }
func (m *mockStore) CreateUpload(_ context.Context, job *models.UploadJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, job)
	return nil
}
func (m *mockStore) GetUpload(_ context.Context, _ uuid.UUID) (*models.UploadJob, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) GetUploadByRunID(_ context.Context, _ string) (*models.UploadJob, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) ListUploads(_ context.Context, _ store.UploadFilter) ([]*models.UploadJob, int, error) {
	return nil, 0, nil
}
func (m *mockStore) UpdateUploadStatus(_ context.Context, _ uuid.UUID, status string, opts ...store.UpdateOption) error {
	m.updates = append(m.updates, status)
	m.optCounts = append(m.optCounts, len(opts))
	return nil
}

// --- mock cache ---

type mockCache struct {
	statuses map[uuid.UUID]string
	results  map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{statuses: map[uuid.UUID]string{}, results: map[string][]byte{}}
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                          { return nil }
func (m *mockCache) Ping(_ context.Context) error                                      { return nil }
func (m *mockCache) SetUploadStatus(_ context.Context, id uuid.UUID, status string, _ time.Duration) error {
	m.statuses[id] = status
	return nil
}
func (m *mockCache) GetUploadStatus(_ context.Context, id uuid.UUID) (string, bool, error) {
	s, ok := m.statuses[id]
	return s, ok, nil
}
func (m *mockCache) SetResult(_ context.Context, runID string, data []byte, _ time.Duration) error {
	m.results[runID] = data
	return nil
}
func (m *mockCache) GetResult(_ context.Context, runID string) ([]byte, bool, error) {
	d, ok := m.results[runID]
	return d, ok, nil
}
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

func TestStoreRecorder_Lifecycle(t *testing.T) {
	st := &mockStore{}
	ca := newMockCache()
	rec := workflow.NewStoreRecorder(st, ca, time.Minute)
	ctx := context.Background()

	job := models.UploadJob{ID: uuid.New(), RunID: "run-1", Status: models.UploadStatusSubmitted}
	rec.Submitted(ctx, job)
	require.Len(t, st.created, 1)
	assert.Equal(t, models.UploadStatusSubmitted, ca.statuses[job.ID])

	job.Status = models.UploadStatusRunning
	rec.StatusChanged(ctx, job)
	assert.Equal(t, models.UploadStatusRunning, ca.statuses[job.ID])

	now := time.Now()
	msg := "Timed out waiting for prediction results. Try again later."
	job.Status = models.UploadStatusTimedOut
	job.ErrorMessage = &msg
	job.ModelUsed = "model-1"
	job.CompletedAt = &now
	rec.StatusChanged(ctx, job)

	assert.Equal(t, []string{models.UploadStatusRunning, models.UploadStatusTimedOut}, st.updates)
	assert.Equal(t, []int{0, 3}, st.optCounts)
	assert.Equal(t, models.UploadStatusTimedOut, ca.statuses[job.ID])

	rs := &models.ResultSet{
		RunID:   "run-1",
		Columns: []string{"cluster"},
		Rows:    []*models.Row{models.RowOf("cluster", 0)},
		Visuals: map[string]string{},
	}
	rec.Resolved(ctx, job, rs)

	var cached map[string]any
	require.NoError(t, json.Unmarshal(ca.results["run-1"], &cached))
	assert.Equal(t, "run-1", cached["run_id"])
	assert.Len(t, cached["rows"], 1)
}

func TestStoreRecorder_CreateFailureSkipsCache(t *testing.T) {
	st := &mockStore{createErr: errors.New("db down")}
	ca := newMockCache()
	rec := workflow.NewStoreRecorder(st, ca, time.Minute)

	job := models.UploadJob{ID: uuid.New(), Status: models.UploadStatusSubmitted}
	rec.Submitted(context.Background(), job)

	_, ok := ca.statuses[job.ID]
	assert.False(t, ok)
}

var _ store.Store = (*mockStore)(nil)
