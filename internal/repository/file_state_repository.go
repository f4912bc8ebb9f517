package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/feedyard/feedlot-etl/internal/db"
	"github.com/feedyard/feedlot-etl/internal/domain"
)

type fileStateRepository struct {
	conn *db.Connection
}

// NewFileStateRepository wires a repository backed by pgxpool.
func NewFileStateRepository(conn *db.Connection) FileStateRepository {
	return &fileStateRepository{conn: conn}
}

const fileStateColumns = `id, organization_id, file_name, pipeline, checksum, state, retry_count, version, last_error, next_retry_at, created_at, updated_at`

func (r *fileStateRepository) Create(ctx context.Context, state domain.FileProcessingState) (domain.FileProcessingState, error) {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	_, err := r.conn.Pool.Exec(
		ctx,
		`INSERT INTO file_processing_states
		 (id, organization_id, file_name, pipeline, checksum, state, retry_count, version, last_error, next_retry_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, $11)`,
		state.ID, state.OrganizationID, state.FileName, state.Pipeline, state.Checksum,
		state.State, state.RetryCount, nullString(state.LastError), state.NextRetryAt,
		state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return domain.FileProcessingState{}, fmt.Errorf("failed to create file state: %w", err)
	}
	state.Version = 0
	return state, nil
}

func (r *fileStateRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.FileProcessingState, error) {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	row := r.conn.Pool.QueryRow(
		ctx,
		`SELECT `+fileStateColumns+` FROM file_processing_states WHERE id = $1`,
		id,
	)
	return scanFileState(row)
}

func (r *fileStateRepository) GetByChecksum(ctx context.Context, organizationID uuid.UUID, checksum string) (*domain.FileProcessingState, error) {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	row := r.conn.Pool.QueryRow(
		ctx,
		`SELECT `+fileStateColumns+`
		 FROM file_processing_states
		 WHERE organization_id = $1 AND checksum = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		organizationID, checksum,
	)
	state, err := scanFileState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Update applies the optimistic lock: the row is only written when the
// stored version still matches the version the caller read. A lost
// race surfaces as ConcurrencyConflictError; it is never merged.
func (r *fileStateRepository) Update(ctx context.Context, state domain.FileProcessingState, expectedVersion int64) (domain.FileProcessingState, error) {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE file_processing_states
		 SET state = $2, retry_count = $3, last_error = $4, next_retry_at = $5,
		     updated_at = $6, version = version + 1
		 WHERE id = $1 AND version = $7`,
		state.ID, state.State, state.RetryCount, nullString(state.LastError),
		state.NextRetryAt, state.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return domain.FileProcessingState{}, fmt.Errorf("failed to update file state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.FileProcessingState{}, &domain.ConcurrencyConflictError{
			FileID:          state.ID.String(),
			ExpectedVersion: expectedVersion,
		}
	}
	state.Version = expectedVersion + 1
	return state, nil
}

func (r *fileStateRepository) ListRetryable(ctx context.Context, now time.Time, maxRetries int) ([]domain.FileProcessingState, error) {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT `+fileStateColumns+`
		 FROM file_processing_states
		 WHERE state = $1 AND retry_count < $2
		   AND (next_retry_at IS NULL OR next_retry_at <= $3)
		 ORDER BY next_retry_at NULLS FIRST`,
		domain.StateFailed, maxRetries, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable files: %w", err)
	}
	defer rows.Close()

	var states []domain.FileProcessingState
	for rows.Next() {
		state, err := scanFileState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func scanFileState(row pgx.Row) (domain.FileProcessingState, error) {
	var state domain.FileProcessingState
	var lastError *string
	err := row.Scan(
		&state.ID, &state.OrganizationID, &state.FileName, &state.Pipeline, &state.Checksum,
		&state.State, &state.RetryCount, &state.Version, &lastError, &state.NextRetryAt,
		&state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FileProcessingState{}, err
		}
		return domain.FileProcessingState{}, fmt.Errorf("failed to scan file state: %w", err)
	}
	if lastError != nil {
		state.LastError = *lastError
	}
	return state, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
