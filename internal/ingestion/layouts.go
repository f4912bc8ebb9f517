package ingestion

import "github.com/feedyard/feedlot-etl/internal/domain"

// Canonical field names shared by the pipeline layouts. The names
// follow the loaders' own export vocabulary so operator-facing error
// messages match the spreadsheets they look at.
const (
	FieldDate      = "data"
	FieldPen       = "curral"
	FieldDiet      = "dieta"
	FieldEquipment = "equipamento"
	FieldShift     = "turno"
	FieldPlannedKg = "kg_planejado"
	FieldActualKg  = "kg_real"
	FieldDevKg     = "desvio_kg"
	FieldDevPct    = "desvio_perc"
	FieldHandler   = "operador"
	FieldProduct   = "produto"
	FieldRoute     = "via"
	FieldDose      = "dose"
	FieldHeadCount = "qtd_animais"
)

// FeedDeviationFields is the canonical layout of feed-loading
// deviation exports.
func FeedDeviationFields() []FieldConfig {
	return []FieldConfig{
		{Name: FieldDate, Required: true, Type: TypeDate, Aliases: []string{"data_carga", "dt", "date"}},
		{Name: FieldPen, Required: true, Type: TypeText, Aliases: []string{"lote", "pen", "piquete"}},
		{Name: FieldDiet, Type: TypeText, Aliases: []string{"racao", "ração", "diet"}},
		{Name: FieldEquipment, Required: true, Type: TypeEnum, Aliases: []string{"maquina", "máquina", "equipment"}},
		{Name: FieldShift, Required: true, Type: TypeEnum, Aliases: []string{"periodo", "período", "shift"}},
		{Name: FieldPlannedKg, Required: true, Type: TypeNumeric, Aliases: []string{"kg_previsto", "planejado", "planned_kg"}},
		{Name: FieldActualKg, Required: true, Type: TypeNumeric, Aliases: []string{"kg_realizado", "realizado", "actual_kg"}},
		{Name: FieldDevKg, Type: TypeNumeric, Aliases: []string{"desvio", "deviation_kg"}},
		{Name: FieldDevPct, Type: TypeNumeric, Aliases: []string{"desvio_percentual", "deviation_pct"}},
		{Name: FieldHandler, Type: TypeText, Aliases: []string{"tratador", "motorista", "operator"}},
	}
}

// PenTreatmentFields is the canonical layout of per-pen treatment
// exports.
func PenTreatmentFields() []FieldConfig {
	return []FieldConfig{
		{Name: FieldDate, Required: true, Type: TypeDate, Aliases: []string{"data_tratamento", "dt", "date"}},
		{Name: FieldPen, Required: true, Type: TypeText, Aliases: []string{"lote", "pen", "piquete"}},
		{Name: FieldProduct, Required: true, Type: TypeText, Aliases: []string{"medicamento", "tratamento", "product"}},
		{Name: FieldRoute, Type: TypeEnum, Aliases: []string{"via_aplicacao", "via_aplicação", "route"}},
		{Name: FieldDose, Required: true, Type: TypeNumeric, Aliases: []string{"dose_ml", "dosagem", "dosage"}},
		{Name: FieldHeadCount, Type: TypeInteger, Aliases: []string{"cabecas", "cabeças", "animais", "head_count"}},
		{Name: FieldShift, Type: TypeEnum, Default: string(domain.ShiftMorning), Aliases: []string{"periodo", "período", "shift"}},
		{Name: FieldHandler, Type: TypeText, Aliases: []string{"responsavel", "responsável", "operator"}},
	}
}

// MapperFor returns the header mapper for a pipeline type.
func MapperFor(pipeline domain.PipelineType) *HeaderMapper {
	switch pipeline {
	case domain.PipelinePenTreatment:
		return NewHeaderMapper(PenTreatmentFields(), "col_")
	default:
		return NewHeaderMapper(FeedDeviationFields(), "col_")
	}
}
