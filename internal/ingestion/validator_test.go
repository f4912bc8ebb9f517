package ingestion

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

func testClock() time.Time {
	return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
}

func newTestValidator(cfg ValidatorConfig) (*Validator, *Cleanser) {
	cleanser := NewCleanser()
	v := NewValidator(cfg, cleanser)
	v.now = testClock
	return v, cleanser
}

func feedRow(rowNumber int, values map[string]string) *domain.MappedRow {
	base := map[string]string{
		FieldDate:      "2024-03-15",
		FieldPen:       "C101",
		FieldEquipment: "vagao",
		FieldShift:     "manha",
		FieldPlannedKg: "1200",
		FieldActualKg:  "1180",
	}
	for k, v := range values {
		if v == "" {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return &domain.MappedRow{RowNumber: rowNumber, Values: base}
}

func TestValidateFeedDeviationHappyPath(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, nil)

	record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row)
	if record == nil {
		t.Fatalf("valid row rejected: %+v", row.Errors)
	}
	if record.PenCode != "C101" || record.EquipmentCode != "vagao" || record.Shift != domain.ShiftMorning {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.PlannedKg != 1200 || record.ActualKg != 1180 {
		t.Fatalf("quantities not parsed: %+v", record)
	}
	if record.DeviationKg != -20 {
		t.Fatalf("expected computed deviation -20, got %v", record.DeviationKg)
	}
}

func TestValidateRejectsDisallowedEquipment(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldEquipment: "trator"})

	if record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row); record != nil {
		t.Fatalf("disallowed equipment must reject the row")
	}
	if row.Valid() {
		t.Fatalf("expected a field error on the row")
	}
	if row.Errors[0].Field != FieldEquipment {
		t.Fatalf("error should point at %s, got %s", FieldEquipment, row.Errors[0].Field)
	}
}

func TestValidateAcceptsEquipmentSynonym(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldEquipment: "Vagão Misturador"})

	record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row)
	if record == nil {
		t.Fatalf("synonym of an allowed equipment rejected: %+v", row.Errors)
	}
	if record.EquipmentCode != "vagao" {
		t.Fatalf("expected canonical vagao, got %q", record.EquipmentCode)
	}
}

func TestValidateRejectsFutureDate(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldDate: "2024-03-25"})

	if record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row); record != nil {
		t.Fatalf("date beyond the future tolerance must reject the row")
	}
	if row.Errors[0].Field != FieldDate {
		t.Fatalf("error should point at %s, got %s", FieldDate, row.Errors[0].Field)
	}
}

func TestValidateToleratesNearFutureDate(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	// Within the 24h tolerance of the fixed clock.
	row := feedRow(2, map[string]string{FieldDate: "2024-03-21"})

	if record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row); record == nil {
		t.Fatalf("date inside the tolerance rejected: %+v", row.Errors)
	}
}

func TestValidateRejectsNegativeQuantity(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldActualKg: "-5"})

	if record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row); record != nil {
		t.Fatalf("negative quantity must reject the row")
	}
}

func TestValidateRejectsImplausibleQuantity(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldActualKg: "60000"})

	if record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row); record != nil {
		t.Fatalf("quantity above the plausibility limit must reject the row")
	}
}

func TestValidateDeviationCrossCheck(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldDevKg: "-20"})

	record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row)
	if record == nil {
		t.Fatalf("matching supplied deviation rejected: %+v", row.Errors)
	}

	row = feedRow(3, map[string]string{FieldDevKg: "5"})
	if record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row); record != nil {
		t.Fatalf("supplied deviation disagreeing with computed must reject the row")
	}
	if row.Errors[0].Field != FieldDevKg {
		t.Fatalf("error should point at %s, got %s", FieldDevKg, row.Errors[0].Field)
	}
}

func TestFlagSuspiciousExtremeDeviation(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldPlannedKg: "100", FieldActualKg: "500"})

	record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row)
	if record == nil {
		t.Fatalf("extreme but plausible row must not be rejected: %+v", row.Errors)
	}

	v.FlagSuspicious(record)
	if !record.Suspicious {
		t.Fatalf("actual at 5x planned must be flagged suspicious")
	}
	found := false
	for _, w := range record.Warnings {
		if strings.Contains(w.Message, "SUSPICIOUS_VALUE") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a SUSPICIOUS_VALUE warning, got %+v", record.Warnings)
	}
}

func TestFlagSuspiciousBelowMultiplier(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, map[string]string{FieldPlannedKg: "100", FieldActualKg: "499"})

	record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row)
	if record == nil {
		t.Fatalf("row rejected: %+v", row.Errors)
	}
	v.FlagSuspicious(record)
	if record.Suspicious {
		t.Fatalf("below the multiplier the row is ordinary")
	}
}

func TestValidateTreatmentRow(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := &domain.MappedRow{
		RowNumber: 2,
		Values: map[string]string{
			FieldDate:      "15/03/2024",
			FieldPen:       "c101",
			FieldProduct:   "ivermectina",
			FieldRoute:     "IM",
			FieldDose:      "10,5",
			FieldHeadCount: "120",
			FieldShift:     "tarde",
		},
	}

	record := v.Validate(uuid.New(), domain.PipelinePenTreatment, row)
	if record == nil {
		t.Fatalf("valid treatment row rejected: %+v", row.Errors)
	}
	if record.PenCode != "C101" {
		t.Fatalf("pen code not normalized: %q", record.PenCode)
	}
	if record.TreatmentProduct != "Ivermectina" {
		t.Fatalf("product not normalized: %q", record.TreatmentProduct)
	}
	if record.TreatmentRoute != "injetavel" {
		t.Fatalf("route not normalized: %q", record.TreatmentRoute)
	}
	if record.ActualKg != 10.5 {
		t.Fatalf("dose not parsed: %v", record.ActualKg)
	}
	if record.HeadCount != 120 {
		t.Fatalf("head count not parsed: %d", record.HeadCount)
	}
}

func TestValidateTreatmentNegativeHeadCount(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := &domain.MappedRow{
		RowNumber: 2,
		Values: map[string]string{
			FieldDate:      "2024-03-15",
			FieldPen:       "C101",
			FieldProduct:   "ivermectina",
			FieldDose:      "10",
			FieldHeadCount: "-3",
			FieldShift:     "manha",
		},
	}

	if record := v.Validate(uuid.New(), domain.PipelinePenTreatment, row); record != nil {
		t.Fatalf("negative head count must reject the row")
	}
}

func TestValidateSkipsRowsAlreadyInError(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	row := feedRow(2, nil)
	row.AddError(FieldPen, "", "required field is empty")

	if record := v.Validate(uuid.New(), domain.PipelineFeedDeviation, row); record != nil {
		t.Fatalf("rows with mapping errors must not be validated further")
	}
}
