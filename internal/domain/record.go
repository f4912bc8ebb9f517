package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineType selects which upload layout and rule set applies.
type PipelineType string

const (
	PipelineFeedDeviation PipelineType = "feed_deviation"
	PipelinePenTreatment  PipelineType = "pen_treatment"
)

// Shift is the normalized work shift of a feed load or treatment.
type Shift string

const (
	ShiftMorning   Shift = "manha"
	ShiftAfternoon Shift = "tarde"
	ShiftNight     Shift = "noite"
)

// EnrichmentStatus marks how many of a record's dimension codes resolved.
type EnrichmentStatus string

const (
	EnrichmentSuccess EnrichmentStatus = "SUCCESS"
	EnrichmentPartial EnrichmentStatus = "PARTIAL"
	EnrichmentNoMatch EnrichmentStatus = "NO_MATCH"
)

// DimensionType identifies a business-code dimension.
type DimensionType string

const (
	DimensionPen       DimensionType = "pen"
	DimensionDiet      DimensionType = "diet"
	DimensionEquipment DimensionType = "equipment"
	DimensionHandler   DimensionType = "handler"
)

// DimensionReference is the outcome of resolving one business code.
// ID is nil when the code is unknown; in that case PendingID points
// at the review-queue entry created for it.
type DimensionReference struct {
	Type      DimensionType `json:"type"`
	Code      string        `json:"code"`
	ID        *uuid.UUID    `json:"id,omitempty"`
	PendingID *uuid.UUID    `json:"pending_id,omitempty"`
}

// Resolved reports whether the code mapped to a stable dimension id.
func (d DimensionReference) Resolved() bool {
	return d.ID != nil
}

// ProcessedRecord is a fully typed, cleansed and validated row ready
// for staging. NaturalKey uniquely identifies the logical fact within
// the organization; re-processing the same file regenerates the same
// key for the same row.
type ProcessedRecord struct {
	OrganizationID uuid.UUID    `json:"organization_id"`
	Pipeline       PipelineType `json:"pipeline"`
	RowNumber      int          `json:"row_number"`
	ReferenceDate  time.Time    `json:"reference_date"`

	PenCode       string `json:"pen_code"`
	DietCode      string `json:"diet_code,omitempty"`
	EquipmentCode string `json:"equipment_code,omitempty"`
	HandlerCode   string `json:"handler_code,omitempty"`
	Shift         Shift  `json:"shift"`

	// Feed deviation quantities, kg. Treatment rows reuse Planned/
	// Actual for dose fields so one staging layout serves both.
	PlannedKg    float64 `json:"kg_planejado"`
	ActualKg     float64 `json:"kg_real"`
	DeviationKg  float64 `json:"desvio_kg"`
	DeviationPct float64 `json:"desvio_perc"`

	TreatmentProduct string `json:"treatment_product,omitempty"`
	TreatmentRoute   string `json:"treatment_route,omitempty"`
	HeadCount        int    `json:"head_count,omitempty"`

	NaturalKey string             `json:"natural_key"`
	Enrichment EnrichmentStatus   `json:"enrichment_status"`
	Suspicious bool               `json:"suspicious"`
	Warnings   []CleansingWarning `json:"warnings,omitempty"`

	Dimensions []DimensionReference `json:"dimensions,omitempty"`
}

// ApplyEnrichment sets the enrichment status from the resolved
// dimension references.
func (r *ProcessedRecord) ApplyEnrichment(refs []DimensionReference) {
	r.Dimensions = refs
	if len(refs) == 0 {
		r.Enrichment = EnrichmentSuccess
		return
	}
	resolved := 0
	for _, ref := range refs {
		if ref.Resolved() {
			resolved++
		}
	}
	switch resolved {
	case len(refs):
		r.Enrichment = EnrichmentSuccess
	case 0:
		r.Enrichment = EnrichmentNoMatch
	default:
		r.Enrichment = EnrichmentPartial
	}
}
