// Package batch chunks processed records into idempotent upserts.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
	"github.com/feedyard/feedlot-etl/internal/repository"
)

// Config tunes the writer.
type Config struct {
	// BatchSize is the number of records per transaction chunk.
	BatchSize int
	// MaxRetries bounds retries of a failed chunk before its rows are
	// dead-lettered.
	MaxRetries int
	// RetryDelay is the linear delay between chunk retries.
	RetryDelay time.Duration
	// UseTransactions keeps each chunk atomic. Disabled only in
	// dry-run style tooling.
	UseTransactions bool
}

// DefaultConfig returns the writer defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:       1000,
		MaxRetries:      3,
		RetryDelay:      2 * time.Second,
		UseTransactions: true,
	}
}

// Result aggregates the outcome of writing one file's records.
type Result struct {
	Inserted   int
	Updated    int
	Failed     int
	DeadLetter int
	Errors     []domain.RowIssue
}

// Writer persists processed records through the staging repository,
// chunked so that a chunk either commits completely or fails
// completely. Repeated runs over the same logical rows are idempotent
// through the natural-key upsert.
type Writer struct {
	cfg     Config
	staging repository.StagingRepository
	dead    repository.DeadLetterRepository
	logger  *slog.Logger
	sleep   func(time.Duration)
}

// NewWriter builds a writer. The dead-letter repository may be nil in
// tests; exhausted chunks are then only counted.
func NewWriter(cfg Config, staging repository.StagingRepository, dead repository.DeadLetterRepository, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{cfg: cfg, staging: staging, dead: dead, logger: logger, sleep: time.Sleep}
}

// Write persists all records for one file. Cancellation is honored at
// chunk boundaries only; an in-flight chunk always completes or fully
// aborts.
func (w *Writer) Write(ctx context.Context, fileID uuid.UUID, organizationID uuid.UUID, records []domain.ProcessedRecord) (Result, error) {
	result := Result{}
	for start := 0; start < len(records); start += w.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("write cancelled before chunk at record %d: %w", start, err)
		}

		end := start + w.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		outcome, err := w.writeChunk(ctx, fileID, chunk)
		if err != nil {
			result.DeadLetter += len(chunk)
			result.Failed += len(chunk)
			result.Errors = append(result.Errors, domain.RowIssue{
				Message: fmt.Sprintf("chunk of %d rows dead-lettered: %v", len(chunk), err),
			})
			if w.dead != nil {
				if dlErr := w.dead.Record(ctx, fileID, organizationID, err.Error(), len(chunk)); dlErr != nil {
					w.logger.Error("failed to record dead letter", "file_id", fileID, "error", dlErr)
				}
			}
			continue
		}
		result.Inserted += outcome.Inserted
		result.Updated += outcome.Updated
		result.Failed += outcome.Failed
		result.Errors = append(result.Errors, outcome.Errors...)
	}
	return result, nil
}

// writeChunk retries transient storage failures with a linear delay.
func (w *Writer) writeChunk(ctx context.Context, fileID uuid.UUID, chunk []domain.ProcessedRecord) (repository.UpsertOutcome, error) {
	var lastErr error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			w.logger.Warn("retrying batch chunk",
				"file_id", fileID, "attempt", attempt, "rows", len(chunk), "error", lastErr)
			w.sleep(time.Duration(attempt) * w.cfg.RetryDelay)
		}
		outcome, err := w.upsert(ctx, fileID, chunk)
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		var storageErr *domain.StorageError
		if errors.As(err, &storageErr) && !storageErr.Transient {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return repository.UpsertOutcome{}, lastErr
}

// upsert writes a chunk atomically, or row by row when transactions
// are disabled so a single bad row cannot take down its siblings.
func (w *Writer) upsert(ctx context.Context, fileID uuid.UUID, chunk []domain.ProcessedRecord) (repository.UpsertOutcome, error) {
	if w.cfg.UseTransactions {
		return w.staging.UpsertBatch(ctx, fileID, chunk)
	}
	total := repository.UpsertOutcome{}
	for i := range chunk {
		outcome, err := w.staging.UpsertBatch(ctx, fileID, chunk[i:i+1])
		if err != nil {
			total.Failed++
			total.Errors = append(total.Errors, domain.RowIssue{
				RowNumber: chunk[i].RowNumber,
				Message:   fmt.Sprintf("upsert failed: %v", err),
			})
			continue
		}
		total.Inserted += outcome.Inserted
		total.Updated += outcome.Updated
		total.Failed += outcome.Failed
		total.Errors = append(total.Errors, outcome.Errors...)
	}
	return total, nil
}
