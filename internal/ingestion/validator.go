package ingestion

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

// deviationTolerance is the float slack accepted between a supplied
// deviation and the recomputed one.
const deviationTolerance = 0.01

// ValidatorConfig carries the business-rule policy knobs. The
// suspicious multiplier and future-date tolerance are deliberately
// configuration, not constants.
type ValidatorConfig struct {
	AllowedEquipment     []string
	MaxPlausibleKg       float64
	FutureDateTolerance  time.Duration
	SuspiciousMultiplier float64
}

// DefaultValidatorConfig mirrors the values the feedlot operation has
// run with so far.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		AllowedEquipment:     []string{"vagao", "carregadeira"},
		MaxPlausibleKg:       50000,
		FutureDateTolerance:  24 * time.Hour,
		SuspiciousMultiplier: 5.0,
	}
}

// Validator turns mapped rows into processed records, rejecting rows
// with field-level errors and flagging suspicious ones.
type Validator struct {
	cfg      ValidatorConfig
	cleanser *Cleanser
	now      func() time.Time
}

// NewValidator builds a validator sharing the file's cleanser so
// normalization warnings aggregate in one place.
func NewValidator(cfg ValidatorConfig, cleanser *Cleanser) *Validator {
	if cfg.SuspiciousMultiplier <= 0 {
		cfg.SuspiciousMultiplier = 5.0
	}
	if cfg.MaxPlausibleKg <= 0 {
		cfg.MaxPlausibleKg = 50000
	}
	return &Validator{cfg: cfg, cleanser: cleanser, now: time.Now}
}

// Validate runs schema validation then business rules over one mapped
// row. On success the returned record is typed and cleansed but not
// yet keyed or enriched; on failure the errors are appended to the row
// and the record is nil.
func (v *Validator) Validate(organizationID uuid.UUID, pipeline domain.PipelineType, row *domain.MappedRow) *domain.ProcessedRecord {
	if !row.Valid() {
		// Required-field errors from mapping already reject the row.
		return nil
	}
	switch pipeline {
	case domain.PipelinePenTreatment:
		return v.validateTreatment(organizationID, row)
	default:
		return v.validateFeedDeviation(organizationID, row)
	}
}

func (v *Validator) validateFeedDeviation(organizationID uuid.UUID, row *domain.MappedRow) *domain.ProcessedRecord {
	record := &domain.ProcessedRecord{
		OrganizationID: organizationID,
		Pipeline:       domain.PipelineFeedDeviation,
		RowNumber:      row.RowNumber,
	}

	date, ok := v.date(row)
	if !ok {
		return nil
	}
	record.ReferenceDate = date

	record.PenCode = v.cleanser.Code(row.RowNumber, FieldPen, row.Values[FieldPen])
	if diet := row.Values[FieldDiet]; diet != "" {
		record.DietCode = v.cleanser.Code(row.RowNumber, FieldDiet, diet)
	}
	if handler := row.Values[FieldHandler]; handler != "" {
		record.HandlerCode = v.cleanser.Code(row.RowNumber, FieldHandler, handler)
	}

	equipment := v.cleanser.Equipment(row.RowNumber, FieldEquipment, row.Values[FieldEquipment])
	if !v.equipmentAllowed(equipment) {
		row.AddError(FieldEquipment, row.Values[FieldEquipment],
			fmt.Sprintf("equipment type not accepted; allowed: %s", strings.Join(v.cfg.AllowedEquipment, ", ")))
		return nil
	}
	record.EquipmentCode = equipment

	shift, err := v.cleanser.Shift(row.RowNumber, FieldShift, row.Values[FieldShift])
	if err != nil {
		row.AddError(FieldShift, row.Values[FieldShift], err.Error())
		return nil
	}
	record.Shift = shift

	planned, ok := v.quantity(row, FieldPlannedKg, true)
	if !ok {
		return nil
	}
	actual, ok := v.quantity(row, FieldActualKg, true)
	if !ok {
		return nil
	}
	record.PlannedKg = planned
	record.ActualKg = actual

	if !v.deviation(row, record) {
		return nil
	}
	return record
}

func (v *Validator) validateTreatment(organizationID uuid.UUID, row *domain.MappedRow) *domain.ProcessedRecord {
	record := &domain.ProcessedRecord{
		OrganizationID: organizationID,
		Pipeline:       domain.PipelinePenTreatment,
		RowNumber:      row.RowNumber,
	}

	date, ok := v.date(row)
	if !ok {
		return nil
	}
	record.ReferenceDate = date

	record.PenCode = v.cleanser.Code(row.RowNumber, FieldPen, row.Values[FieldPen])
	record.TreatmentProduct = v.cleanser.Text(row.RowNumber, FieldProduct, row.Values[FieldProduct])
	if route := row.Values[FieldRoute]; route != "" {
		record.TreatmentRoute = v.cleanser.Route(row.RowNumber, FieldRoute, route)
	}
	if handler := row.Values[FieldHandler]; handler != "" {
		record.HandlerCode = v.cleanser.Code(row.RowNumber, FieldHandler, handler)
	}

	shift, err := v.cleanser.Shift(row.RowNumber, FieldShift, row.Values[FieldShift])
	if err != nil {
		row.AddError(FieldShift, row.Values[FieldShift], err.Error())
		return nil
	}
	record.Shift = shift

	dose, ok := v.quantity(row, FieldDose, true)
	if !ok {
		return nil
	}
	record.ActualKg = dose
	record.PlannedKg = dose

	if raw := row.Values[FieldHeadCount]; raw != "" {
		count, err := v.cleanser.Integer(row.RowNumber, FieldHeadCount, raw)
		if err != nil {
			row.AddError(FieldHeadCount, raw, err.Error())
			return nil
		}
		if count < 0 {
			row.AddError(FieldHeadCount, raw, "head count cannot be negative")
			return nil
		}
		record.HeadCount = count
	}
	return record
}

func (v *Validator) date(row *domain.MappedRow) (time.Time, bool) {
	raw := row.Values[FieldDate]
	date, err := v.cleanser.Date(row.RowNumber, FieldDate, raw)
	if err != nil {
		row.AddError(FieldDate, raw, err.Error())
		return time.Time{}, false
	}
	if date.After(v.now().Add(v.cfg.FutureDateTolerance)) {
		row.AddError(FieldDate, raw, fmt.Sprintf("date is more than %s in the future", v.cfg.FutureDateTolerance))
		return time.Time{}, false
	}
	return date, true
}

func (v *Validator) quantity(row *domain.MappedRow, field string, required bool) (float64, bool) {
	raw := row.Values[field]
	if raw == "" {
		if required {
			row.AddError(field, raw, "required quantity is empty")
			return 0, false
		}
		return 0, true
	}
	value, err := v.cleanser.Decimal(row.RowNumber, field, raw)
	if err != nil {
		row.AddError(field, raw, err.Error())
		return 0, false
	}
	if value < 0 {
		row.AddError(field, raw, "quantity cannot be negative")
		return 0, false
	}
	if value > v.cfg.MaxPlausibleKg {
		row.AddError(field, raw, fmt.Sprintf("quantity exceeds plausibility limit of %.0f", v.cfg.MaxPlausibleKg))
		return 0, false
	}
	return value, true
}

// deviation fills in missing deviation fields and cross-checks any
// supplied ones against the recomputed values within tolerance.
func (v *Validator) deviation(row *domain.MappedRow, record *domain.ProcessedRecord) bool {
	computedKg := record.ActualKg - record.PlannedKg
	computedPct := 0.0
	if record.PlannedKg != 0 {
		computedPct = computedKg / record.PlannedKg * 100
	}

	if raw := row.Values[FieldDevKg]; raw != "" {
		supplied, err := v.cleanser.Decimal(row.RowNumber, FieldDevKg, raw)
		if err != nil {
			row.AddError(FieldDevKg, raw, err.Error())
			return false
		}
		if math.Abs(supplied-computedKg) > deviationTolerance {
			row.AddError(FieldDevKg, raw,
				fmt.Sprintf("supplied deviation %.2f disagrees with computed %.2f", supplied, computedKg))
			return false
		}
	}
	if raw := row.Values[FieldDevPct]; raw != "" {
		supplied, err := v.cleanser.Decimal(row.RowNumber, FieldDevPct, raw)
		if err != nil {
			row.AddError(FieldDevPct, raw, err.Error())
			return false
		}
		if math.Abs(supplied-computedPct) > deviationTolerance {
			row.AddError(FieldDevPct, raw,
				fmt.Sprintf("supplied deviation %.2f%% disagrees with computed %.2f%%", supplied, computedPct))
			return false
		}
	}

	record.DeviationKg = computedKg
	record.DeviationPct = computedPct
	return true
}

// FlagSuspicious is the second validation pass, run after natural-key
// assignment. Extreme deviations are kept but marked low-confidence.
func (v *Validator) FlagSuspicious(record *domain.ProcessedRecord) {
	if record.Pipeline != domain.PipelineFeedDeviation {
		return
	}
	if record.PlannedKg > 0 && record.ActualKg >= v.cfg.SuspiciousMultiplier*record.PlannedKg {
		record.Suspicious = true
		record.Warnings = append(record.Warnings, domain.CleansingWarning{
			RowNumber: record.RowNumber,
			Field:     FieldActualKg,
			Message:   fmt.Sprintf("SUSPICIOUS_VALUE: actual is %.1fx planned", record.ActualKg/record.PlannedKg),
			Original:  fmt.Sprintf("%.2f", record.ActualKg),
			Cleaned:   fmt.Sprintf("%.2f", record.ActualKg),
		})
	}
}

func (v *Validator) equipmentAllowed(equipment string) bool {
	for _, allowed := range v.cfg.AllowedEquipment {
		if equipment == allowed {
			return true
		}
	}
	return false
}
