package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const uploadColumns = `id, filename, mime_type, size_bytes, kind, record_count, requested_k, cluster_k,
	run_id, model_id, model_used, status, error_message, selected_at, completed_at, created_at, updated_at`

func scanUpload(row pgx.Row) (*models.UploadJob, error) {
	var u models.UploadJob
	err := row.Scan(&u.ID, &u.FileName, &u.MimeType, &u.SizeBytes, &u.Kind, &u.RecordCount,
		&u.RequestedK, &u.ClusterK, &u.RunID, &u.ModelID, &u.ModelUsed, &u.Status,
		&u.ErrorMessage, &u.SelectedAt, &u.CompletedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUpload(ctx context.Context, job *models.UploadJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO uploads (`+uploadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		job.ID, job.FileName, job.MimeType, job.SizeBytes, job.Kind, job.RecordCount,
		job.RequestedK, job.ClusterK, job.RunID, job.ModelID, job.ModelUsed, job.Status,
		job.ErrorMessage, job.SelectedAt, job.CompletedAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUpload(ctx context.Context, id uuid.UUID) (*models.UploadJob, error) {
	u, err := scanUpload(s.pool.QueryRow(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUploadByRunID(ctx context.Context, runID string) (*models.UploadJob, error) {
	u, err := scanUpload(s.pool.QueryRow(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE run_id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload by run id: %w", err)
	}
	return u, nil
}

// ListUploads returns one page of uploads, newest first, and the total match count.
func (s *PostgresStore) ListUploads(ctx context.Context, filter UploadFilter) ([]*models.UploadJob, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	where := ""
	args := []any{}
	if filter.Status != "" {
		where = " WHERE status = $1"
		args = append(args, filter.Status)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM uploads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	query := fmt.Sprintf(`SELECT %s FROM uploads%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		uploadColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []*models.UploadJob{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, total, rows.Err()
}

var validTransitions = map[string][]string{
	models.UploadStatusPending: {models.UploadStatusSubmitted, models.UploadStatusFailed},
	models.UploadStatusSubmitted: {
		models.UploadStatusRunning, models.UploadStatusCompleted, models.UploadStatusFailed,
		models.UploadStatusTimedOut, models.UploadStatusAborted,
	},
	models.UploadStatusRunning: {
		models.UploadStatusCompleted, models.UploadStatusFailed,
		models.UploadStatusTimedOut, models.UploadStatusAborted,
	},
}

func (s *PostgresStore) UpdateUploadStatus(ctx context.Context, id uuid.UUID, status string, opts ...UpdateOption) error {
	params := &updateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM uploads WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get upload status: %w", err)
	}

	if !slices.Contains(validTransitions[currentStatus], status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE uploads SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if models.IsTerminalUploadStatus(status) {
		completed := now
		if params.CompletedAt != nil {
			completed = *params.CompletedAt
		}
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, completed)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.ModelUsed != nil {
		query += fmt.Sprintf(", model_used = $%d", argIdx)
		args = append(args, *params.ModelUsed)
		argIdx++
	}

	query += " WHERE id = $1"

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update upload status: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
