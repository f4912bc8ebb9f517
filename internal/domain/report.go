package domain

import "time"

// RowIssue is one user-visible problem found during a run, actionable
// by field name, offending value and row number.
type RowIssue struct {
	RowNumber int    `json:"row_number,omitempty"`
	Field     string `json:"field,omitempty"`
	Value     string `json:"value,omitempty"`
	Message   string `json:"message"`
}

// ProcessingReport summarizes one run over one uploaded file.
type ProcessingReport struct {
	FileName       string             `json:"file_name"`
	Pipeline       PipelineType       `json:"pipeline"`
	TotalRows      int                `json:"total_rows"`
	ValidRows      int                `json:"valid_rows"`
	InvalidRows    int                `json:"invalid_rows"`
	StagingInserts int                `json:"staging_inserts"`
	FactUpserts    int                `json:"fact_upserts"`
	Errors         []RowIssue         `json:"errors"`
	Warnings       []CleansingWarning `json:"warnings"`
	PendingCreated int                `json:"pending_created"`
	DurationMs     int64              `json:"duration_ms"`
	StartedAt      time.Time          `json:"started_at"`
}

// AddError records a run error from a field-level violation.
func (r *ProcessingReport) AddError(issue RowIssue) {
	r.Errors = append(r.Errors, issue)
}

// Finish stamps the wall-clock duration of the run.
func (r *ProcessingReport) Finish() {
	r.DurationMs = time.Since(r.StartedAt).Milliseconds()
}
