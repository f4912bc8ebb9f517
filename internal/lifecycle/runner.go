package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/batch"
	"github.com/feedyard/feedlot-etl/internal/checksum"
	"github.com/feedyard/feedlot-etl/internal/domain"
	"github.com/feedyard/feedlot-etl/internal/ingestion"
	"github.com/feedyard/feedlot-etl/internal/repository"
)

// RunnerConfig tunes run orchestration.
type RunnerConfig struct {
	Retry RetryPolicy
	// RunTimeout is the wall-clock budget for one full run. Zero
	// disables the budget.
	RunTimeout time.Duration
	// DryRunCleanup counts stale staging rows instead of deleting.
	DryRunCleanup bool
}

// DefaultRunnerConfig returns the orchestration defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Retry:      DefaultRetryPolicy(),
		RunTimeout: 10 * time.Minute,
	}
}

// UploadRequest is one file submitted for processing.
type UploadRequest struct {
	OrganizationID uuid.UUID
	FileName       string
	Pipeline       domain.PipelineType
	Payload        []byte
	Force          checksum.Force
}

// Runner orchestrates a complete run over one uploaded file: checksum
// gating, lifecycle transitions, staging cleanup, the row pipeline,
// the batch writer and terminal bookkeeping.
type Runner struct {
	cfg      RunnerConfig
	machine  *Machine
	gate     *checksum.Gate
	files    repository.FileStateRepository
	staging  repository.StagingRepository
	audit    repository.AuditRepository
	dead     repository.DeadLetterRepository
	pipeline *ingestion.Service
	writer   *batch.Writer
	logger   *slog.Logger
}

// NewRunner wires the orchestrator. Every collaborator is injected;
// the runner holds no ambient state.
func NewRunner(
	cfg RunnerConfig,
	machine *Machine,
	gate *checksum.Gate,
	files repository.FileStateRepository,
	staging repository.StagingRepository,
	audit repository.AuditRepository,
	dead repository.DeadLetterRepository,
	pipeline *ingestion.Service,
	writer *batch.Writer,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg: cfg, machine: machine, gate: gate, files: files, staging: staging,
		audit: audit, dead: dead, pipeline: pipeline, writer: writer, logger: logger,
	}
}

// ProcessUpload runs the full pipeline for one upload. Duplicate
// content is rejected unless the prior run failed, was cancelled, or
// the caller forces reprocessing. Row-level problems never abort the
// run; file-level problems move the file to failed and schedule a
// bounded retry.
func (r *Runner) ProcessUpload(ctx context.Context, req UploadRequest) (*domain.ProcessingReport, error) {
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	sum := checksum.Sum(req.Payload)
	prior, err := r.gate.Check(ctx, req.OrganizationID, req.FileName, sum, req.Force)
	if err != nil {
		return nil, err
	}

	var state domain.FileProcessingState
	if prior != nil {
		if err := r.cleanupStaging(ctx, *prior); err != nil {
			return nil, err
		}
	}
	// Failed and cancelled records re-enter parsing directly. A forced
	// reprocess of a loaded file gets a fresh record instead, since
	// loaded is terminal.
	if prior != nil && domain.IsValidTransition(prior.State, domain.StateParsing) {
		state = *prior
	} else {
		created, err := r.files.Create(ctx, domain.NewFileProcessingState(req.OrganizationID, req.FileName, req.Pipeline, sum))
		if err != nil {
			return nil, fmt.Errorf("register upload: %w", err)
		}
		state = created
	}

	state, err = r.machine.Transition(ctx, state, domain.StateParsing)
	if err != nil {
		return nil, err
	}

	pendingBefore := r.pipeline.PendingCreated()
	records, report, err := r.pipeline.Process(ctx, ingestion.FileInput{
		OrganizationID: req.OrganizationID,
		FileName:       req.FileName,
		Pipeline:       req.Pipeline,
		Data:           bytes.NewReader(req.Payload),
	})
	if err != nil {
		return report, r.failRun(ctx, state, err)
	}

	// Parsing, validation and keying happen in one pass; the
	// intermediate states are still recorded so observers and the
	// transition audit see the same lifecycle for every file.
	for _, next := range []domain.FileState{domain.StateParsed, domain.StateValidating, domain.StateValidated, domain.StateLoading} {
		state, err = r.machine.Transition(ctx, state, next)
		if err != nil {
			return report, err
		}
	}

	writeResult, err := r.writer.Write(ctx, state.ID, req.OrganizationID, records)
	if err != nil {
		return report, r.failRun(ctx, state, err)
	}
	report.StagingInserts = writeResult.Inserted
	report.FactUpserts = writeResult.Inserted + writeResult.Updated
	report.InvalidRows += writeResult.Failed
	report.Errors = append(report.Errors, writeResult.Errors...)
	report.PendingCreated = r.pipeline.PendingCreated() - pendingBefore
	report.Finish()

	state, err = r.machine.Transition(ctx, state, domain.StateLoaded)
	if err != nil {
		return report, err
	}

	if err := r.audit.LogEvent(ctx, "info", "run_completed",
		fmt.Sprintf("file %s loaded", req.FileName),
		map[string]any{
			"file_id":         state.ID.String(),
			"total_rows":      report.TotalRows,
			"valid_rows":      report.ValidRows,
			"invalid_rows":    report.InvalidRows,
			"staging_inserts": report.StagingInserts,
			"fact_upserts":    report.FactUpserts,
			"duration_ms":     report.DurationMs,
		},
	); err != nil {
		r.logger.Error("failed to audit run completion", "file_id", state.ID, "error", err)
	}
	return report, nil
}

// Cancel moves a file to cancelled. Only uploaded, parsed and
// validated files can be cancelled; an in-flight stage finishes first.
func (r *Runner) Cancel(ctx context.Context, fileID uuid.UUID, actor string) error {
	state, err := r.machine.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if _, err := r.machine.Transition(ctx, state, domain.StateCancelled); err != nil {
		return err
	}
	return r.audit.LogEvent(ctx, "info", "run_cancelled",
		fmt.Sprintf("file %s cancelled", state.FileName),
		map[string]any{"file_id": fileID.String(), "actor": actor})
}

// ListRetryable surfaces failed files whose next retry time has come.
func (r *Runner) ListRetryable(ctx context.Context) ([]domain.FileProcessingState, error) {
	return r.files.ListRetryable(ctx, time.Now(), r.cfg.Retry.MaxRetries)
}

// cleanupStaging removes (or, in dry-run, counts) staging rows left by
// earlier runs of the file, and audits the outcome.
func (r *Runner) cleanupStaging(ctx context.Context, state domain.FileProcessingState) error {
	var removed int64
	var err error
	action := "staging_cleanup"
	if r.cfg.DryRunCleanup {
		action = "staging_cleanup_dry_run"
		removed, err = r.staging.CountByFile(ctx, state.ID)
	} else {
		removed, err = r.staging.DeleteByFile(ctx, state.ID)
	}
	if err != nil {
		return fmt.Errorf("staging cleanup for %s: %w", state.ID, err)
	}
	return r.audit.LogEvent(ctx, "info", action,
		fmt.Sprintf("staging rows for %s: %d", state.FileName, removed),
		map[string]any{"file_id": state.ID.String(), "rows": removed, "dry_run": r.cfg.DryRunCleanup})
}

// failRun records the failure, schedules a bounded retry or routes the
// file to the dead-letter queue when attempts are exhausted.
func (r *Runner) failRun(ctx context.Context, state domain.FileProcessingState, cause error) error {
	attempt := state.RetryCount
	if r.cfg.Retry.CanRetry(attempt) {
		next := r.cfg.Retry.NextRetryTime(attempt)
		state.RetryCount = attempt + 1
		state.NextRetryAt = &next
		if _, err := r.machine.Fail(ctx, state, cause); err != nil {
			return fmt.Errorf("record failure: %w (original: %v)", err, cause)
		}
		if err := r.audit.LogEvent(ctx, "warn", "retry_scheduled",
			fmt.Sprintf("file %s failed, retry %d scheduled", state.FileName, state.RetryCount),
			map[string]any{
				"file_id":       state.ID.String(),
				"attempt":       attempt,
				"next_retry_at": next.Format(time.RFC3339),
				"error":         cause.Error(),
			},
		); err != nil {
			r.logger.Error("failed to audit retry", "file_id", state.ID, "error", err)
		}
		return cause
	}

	state.NextRetryAt = nil
	if _, err := r.machine.Fail(ctx, state, cause); err != nil {
		return fmt.Errorf("record terminal failure: %w (original: %v)", err, cause)
	}
	if err := r.dead.Record(ctx, state.ID, state.OrganizationID, cause.Error(), 0); err != nil {
		r.logger.Error("failed to record dead letter", "file_id", state.ID, "error", err)
	}
	if err := r.audit.LogEvent(ctx, "error", "dead_letter",
		fmt.Sprintf("file %s exhausted retries", state.FileName),
		map[string]any{"file_id": state.ID.String(), "attempts": attempt, "error": cause.Error()},
	); err != nil {
		r.logger.Error("failed to audit dead letter", "file_id", state.ID, "error", err)
	}
	return cause
}
