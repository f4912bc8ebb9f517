package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

// FileStateRepository persists the per-file lifecycle records.
type FileStateRepository interface {
	Create(ctx context.Context, state domain.FileProcessingState) (domain.FileProcessingState, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.FileProcessingState, error)
	// GetByChecksum finds the newest file record sharing content for
	// an organization; nil when the content was never seen.
	GetByChecksum(ctx context.Context, organizationID uuid.UUID, checksum string) (*domain.FileProcessingState, error)
	// Update persists state, retry count and error under the optimistic
	// lock: the write fails with ConcurrencyConflictError when the
	// stored version no longer matches expectedVersion.
	Update(ctx context.Context, state domain.FileProcessingState, expectedVersion int64) (domain.FileProcessingState, error)
	// ListRetryable returns failed, non-exhausted files whose next
	// retry time has passed.
	ListRetryable(ctx context.Context, now time.Time, maxRetries int) ([]domain.FileProcessingState, error)
}

// UpsertOutcome summarizes one staged batch write.
type UpsertOutcome struct {
	Inserted int
	Updated  int
	Failed   int
	Errors   []domain.RowIssue
}

// StagingRepository is the sole writer of staging and fact rows.
type StagingRepository interface {
	// UpsertBatch inserts or, on (organization, natural_key) conflict,
	// updates the given records inside one transaction.
	UpsertBatch(ctx context.Context, fileID uuid.UUID, records []domain.ProcessedRecord) (UpsertOutcome, error)
	// DeleteByFile removes staging rows from earlier runs of a file.
	DeleteByFile(ctx context.Context, fileID uuid.UUID) (int64, error)
	// CountByFile counts staging rows without deleting (dry-run).
	CountByFile(ctx context.Context, fileID uuid.UUID) (int64, error)
}

// AuditRepository records operational events: retries, cleanups,
// forced reprocesses, pending-entry resolutions.
type AuditRepository interface {
	LogEvent(ctx context.Context, level, action, message string, details map[string]any) error
}

// DeadLetterRepository stores permanent failures excluded from
// further automatic retry.
type DeadLetterRepository interface {
	Record(ctx context.Context, fileID uuid.UUID, organizationID uuid.UUID, reason string, rows int) error
}
