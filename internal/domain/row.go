package domain

// RawRow is one parsed line of an uploaded file before any mapping.
// Cells are positional; RowNumber is 1-based and counts file lines,
// so error messages point at the line the user sees.
type RawRow struct {
	RowNumber int      `json:"row_number"`
	Cells     []string `json:"cells"`
	Headers   []string `json:"headers"`
}

// FieldError is a single-row violation tied to a canonical field.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// MappedRow carries a raw row after canonical header mapping.
// Values is keyed by canonical field name. Missing lists required
// fields empty on this row; Unmapped lists source headers that
// matched no canonical field. Errors may be appended by later
// stages; everything else is fixed at construction.
type MappedRow struct {
	RowNumber int               `json:"row_number"`
	Values    map[string]string `json:"values"`
	Missing   []string          `json:"missing,omitempty"`
	Unmapped  []string          `json:"unmapped,omitempty"`
	Errors    []FieldError      `json:"errors,omitempty"`
}

// AddError appends a field-level error to the row.
func (m *MappedRow) AddError(field, value, message string) {
	m.Errors = append(m.Errors, FieldError{Field: field, Value: value, Message: message})
}

// Valid reports whether the row has accumulated no errors.
func (m *MappedRow) Valid() bool {
	return len(m.Errors) == 0
}

// CleansingWarning records a value the cleanser changed while
// normalizing a row. Warnings are aggregated for audit and never
// block processing.
type CleansingWarning struct {
	RowNumber int    `json:"row_number"`
	Field     string `json:"field"`
	Message   string `json:"message"`
	Original  string `json:"original_value"`
	Cleaned   string `json:"cleaned_value"`
}
