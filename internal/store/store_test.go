package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/dnaspecies/internal/store"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dnaspecies_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	// A second run is a no-op.
	require.NoError(t, store.RunMigrations(connStr, migrationsDir()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newUpload(runID string) *models.UploadJob {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.UploadJob{
		ID:          uuid.New(),
		FileName:    "reads.fasta",
		MimeType:    "text/plain",
		SizeBytes:   1200,
		Kind:        "fasta",
		RecordCount: 5,
		RequestedK:  10,
		ClusterK:    5,
		RunID:       runID,
		ModelID:     "model-1",
		Status:      models.UploadStatusSubmitted,
		SelectedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestUpload_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	u := newUpload("run-1")
	require.NoError(t, s.CreateUpload(ctx, u))

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "reads.fasta", got.FileName)
	assert.Equal(t, 5, got.ClusterK)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, models.UploadStatusSubmitted, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.ErrorMessage)

	byRun, err := s.GetUploadByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byRun.ID)
}

func TestUpload_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetUpload(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetUploadByRunID(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpload_DuplicateRunID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateUpload(ctx, newUpload("run-dup")))
	err := s.CreateUpload(ctx, newUpload("run-dup"))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUpload_UpdateStatusToRunning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	u := newUpload("run-2")
	require.NoError(t, s.CreateUpload(ctx, u))

	require.NoError(t, s.UpdateUploadStatus(ctx, u.ID, models.UploadStatusRunning))

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestUpload_UpdateStatusCompleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	u := newUpload("run-3")
	require.NoError(t, s.CreateUpload(ctx, u))
	require.NoError(t, s.UpdateUploadStatus(ctx, u.ID, models.UploadStatusRunning))

	done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := s.UpdateUploadStatus(ctx, u.ID, models.UploadStatusCompleted,
		store.WithModelUsed("model-2"), store.WithCompletedAt(done))
	require.NoError(t, err)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusCompleted, got.Status)
	assert.Equal(t, "model-2", got.ModelUsed)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestUpload_UpdateStatusFailedFromSubmitted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	u := newUpload("run-4")
	require.NoError(t, s.CreateUpload(ctx, u))

	err := s.UpdateUploadStatus(ctx, u.ID, models.UploadStatusFailed,
		store.WithErrorMessage("Job failed - check server logs."))
	require.NoError(t, err)

	got, err := s.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "Job failed - check server logs.", *got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
}

func TestUpload_UpdateStatusInvalidTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	u := newUpload("run-5")
	require.NoError(t, s.CreateUpload(ctx, u))
	require.NoError(t, s.UpdateUploadStatus(ctx, u.ID, models.UploadStatusAborted))

	err := s.UpdateUploadStatus(ctx, u.ID, models.UploadStatusRunning)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "aborted -> running")
}

func TestUpload_UpdateStatusNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateUploadStatus(context.Background(), uuid.New(), models.UploadStatusRunning)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpload_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	for i, runID := range []string{"run-a", "run-b", "run-c"} {
		u := newUpload(runID)
		u.CreatedAt = u.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateUpload(ctx, u))
		if runID == "run-b" {
			require.NoError(t, s.UpdateUploadStatus(ctx, u.ID, models.UploadStatusTimedOut))
		}
	}

	all, total, err := s.ListUploads(ctx, store.UploadFilter{Limit: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 2)
	assert.Equal(t, "run-c", all[0].RunID)
	assert.Equal(t, "run-b", all[1].RunID)

	page2, _, err := s.ListUploads(ctx, store.UploadFilter{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "run-a", page2[0].RunID)

	timedOut, total, err := s.ListUploads(ctx, store.UploadFilter{Status: models.UploadStatusTimedOut})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, timedOut, 1)
	assert.Equal(t, "run-b", timedOut[0].RunID)
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	assert.NoError(t, s.Ping(context.Background()))
}
