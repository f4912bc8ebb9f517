// Package ingestion turns uploaded feedlot equipment exports into
// validated, keyed, dimension-enriched records.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feedyard/feedlot-etl/internal/dimension"
	"github.com/feedyard/feedlot-etl/internal/domain"
)

// ServiceConfig tunes the per-file pipeline.
type ServiceConfig struct {
	// BatchSize is the number of rows cleansed and validated per wave.
	BatchSize int
	// Workers bounds parallel row validation within a batch.
	Workers   int
	Parser    ParserConfig
	Validator ValidatorConfig
}

// DefaultServiceConfig returns the pipeline defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		BatchSize: 1000,
		Workers:   4,
		Parser:    DefaultParserConfig(),
		Validator: DefaultValidatorConfig(),
	}
}

// FileInput is one uploaded file to process.
type FileInput struct {
	OrganizationID uuid.UUID
	FileName       string
	Pipeline       domain.PipelineType
	Data           io.Reader
}

// Service runs the row pipeline for one file: parse, map headers,
// cleanse, validate, key, resolve dimensions. Persistence belongs to
// the lifecycle runner, not here.
type Service struct {
	cfg      ServiceConfig
	resolver *dimension.Resolver
	logger   *slog.Logger
}

// NewService builds the pipeline service.
func NewService(cfg ServiceConfig, resolver *dimension.Resolver, logger *slog.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, resolver: resolver, logger: logger}
}

// PendingCreated reports how many review entries the underlying
// resolver has opened.
func (s *Service) PendingCreated() int {
	return s.resolver.PendingCreated()
}

// Process reads the upload and produces the records ready for the
// batch writer plus the run report. File-level problems (parse
// failure, unmapped required columns) return an error; row-level
// problems only mark rows invalid in the report.
func (s *Service) Process(ctx context.Context, input FileInput) ([]domain.ProcessedRecord, *domain.ProcessingReport, error) {
	report := &domain.ProcessingReport{
		FileName:  input.FileName,
		Pipeline:  input.Pipeline,
		StartedAt: time.Now(),
		Errors:    []domain.RowIssue{},
		Warnings:  []domain.CleansingWarning{},
	}

	table, err := ParseTable(input.FileName, input.Data, s.cfg.Parser)
	if err != nil {
		return nil, report, err
	}
	if table.SeparatorFellBack {
		report.Warnings = append(report.Warnings, domain.CleansingWarning{
			Field:   "separator",
			Message: fmt.Sprintf("separator detection below confidence threshold; fell back to %q", string(table.Separator)),
		})
	}

	mapper := MapperFor(input.Pipeline)
	analysis := mapper.Analyze(table.Headers)
	if len(analysis.MissingRequired) > 0 {
		return nil, report, &domain.MappingError{FileName: input.FileName, Missing: analysis.MissingRequired}
	}
	for _, unmapped := range analysis.Unmapped {
		report.Warnings = append(report.Warnings, domain.CleansingWarning{
			Field:    unmapped.Header,
			Message:  fmt.Sprintf("unmapped column; closest canonical field is %q (score %.2f)", unmapped.Suggestion, unmapped.Score),
			Original: unmapped.Header,
		})
	}

	report.TotalRows = len(table.Rows)
	records := make([]domain.ProcessedRecord, 0, len(table.Rows))

	for start := 0; start < len(table.Rows); start += s.cfg.BatchSize {
		// Cancellation is honored between batches, never mid-batch.
		if err := ctx.Err(); err != nil {
			return records, report, fmt.Errorf("processing cancelled at row %d: %w", start, err)
		}
		end := start + s.cfg.BatchSize
		if end > len(table.Rows) {
			end = len(table.Rows)
		}
		if err := s.processBatch(ctx, input, mapper, analysis, table.Rows[start:end], &records, report); err != nil {
			return records, report, err
		}
	}

	s.logger.Info("file processed",
		"file", input.FileName, "pipeline", input.Pipeline,
		"total", report.TotalRows, "valid", report.ValidRows, "invalid", report.InvalidRows)
	return records, report, nil
}

// rowOutcome carries one row's result out of the worker pool in batch
// order, so report aggregation stays deterministic.
type rowOutcome struct {
	record   *domain.ProcessedRecord
	errors   []domain.FieldError
	warnings []domain.CleansingWarning
}

func (s *Service) processBatch(
	ctx context.Context,
	input FileInput,
	mapper *HeaderMapper,
	analysis MappingAnalysis,
	rows []domain.RawRow,
	records *[]domain.ProcessedRecord,
	report *domain.ProcessingReport,
) error {
	outcomes := make([]rowOutcome, len(rows))

	// Each worker owns its row's cleanser and validator: no mutable
	// state is shared across rows.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Workers)
	for i := range rows {
		i := i
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.processRow(input, mapper, analysis, rows[i])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i := range outcomes {
		outcome := &outcomes[i]
		report.Warnings = append(report.Warnings, outcome.warnings...)
		if outcome.record == nil {
			report.InvalidRows++
			for _, fieldErr := range outcome.errors {
				report.AddError(domain.RowIssue{
					RowNumber: rows[i].RowNumber,
					Field:     fieldErr.Field,
					Value:     fieldErr.Value,
					Message:   fieldErr.Message,
				})
			}
			continue
		}

		// Dimension resolution is sequential: pending-entry creation
		// must not race itself within one batch.
		if err := s.resolver.ResolveRecord(ctx, outcome.record); err != nil {
			return fmt.Errorf("row %d: %w", outcome.record.RowNumber, err)
		}
		report.ValidRows++
		report.Warnings = append(report.Warnings, outcome.record.Warnings...)
		*records = append(*records, *outcome.record)
	}
	return nil
}

func (s *Service) processRow(input FileInput, mapper *HeaderMapper, analysis MappingAnalysis, raw domain.RawRow) rowOutcome {
	cleanser := NewCleanser()
	validator := NewValidator(s.cfg.Validator, cleanser)

	mapped := mapper.MapRow(raw, analysis)
	record := validator.Validate(input.OrganizationID, input.Pipeline, &mapped)
	outcome := rowOutcome{warnings: cleanser.Warnings()}
	if record == nil {
		outcome.errors = mapped.Errors
		return outcome
	}

	switch input.Pipeline {
	case domain.PipelinePenTreatment:
		record.NaturalKey = domain.NaturalKey(record.OrganizationID, record.ReferenceDate,
			record.PenCode, record.TreatmentProduct, string(record.Shift))
	default:
		record.NaturalKey = domain.NaturalKey(record.OrganizationID, record.ReferenceDate,
			record.PenCode, record.EquipmentCode, string(record.Shift))
	}

	// Second validation pass runs after key assignment.
	validator.FlagSuspicious(record)
	outcome.record = record
	return outcome
}
