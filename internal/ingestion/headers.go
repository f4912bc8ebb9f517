package ingestion

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

// FieldType describes the expected value shape of a canonical field.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeDate    FieldType = "date"
	TypeNumeric FieldType = "numeric"
	TypeInteger FieldType = "integer"
	TypeEnum    FieldType = "enum"
)

// FieldConfig declares one canonical field of a pipeline layout.
type FieldConfig struct {
	Name     string
	Required bool
	Aliases  []string
	Type     FieldType
	Default  string
	// EnumValues constrains FieldEnum fields after cleansing.
	EnumValues []string
}

// HeaderSuggestion pairs an unmapped source header with its closest
// canonical field by edit distance. Suggestions are recorded, never
// auto-applied.
type HeaderSuggestion struct {
	Header     string  `json:"header"`
	Suggestion string  `json:"suggestion"`
	Score      float64 `json:"score"`
}

// MappingAnalysis is the per-file outcome of header mapping.
type MappingAnalysis struct {
	Mapped          map[string]int     `json:"mapped"` // canonical name -> column index
	Unmapped        []HeaderSuggestion `json:"unmapped,omitempty"`
	MissingRequired []string           `json:"missing_required,omitempty"`
	Confidence      float64            `json:"confidence"`
}

// HeaderMapper resolves arbitrary file headers to canonical fields.
type HeaderMapper struct {
	fields []FieldConfig
	// stripAffixes are removed from header text before alias lookup,
	// e.g. export tool prefixes like "col_" or units like "_kg".
	stripAffixes []string
	aliasIndex   map[string]string // normalized alias -> canonical name
}

// NewHeaderMapper builds a mapper for one pipeline layout.
func NewHeaderMapper(fields []FieldConfig, stripAffixes ...string) *HeaderMapper {
	m := &HeaderMapper{
		fields:       fields,
		stripAffixes: stripAffixes,
		aliasIndex:   make(map[string]string),
	}
	for _, field := range fields {
		m.aliasIndex[m.normalize(field.Name)] = field.Name
		for _, alias := range field.Aliases {
			m.aliasIndex[m.normalize(alias)] = field.Name
		}
	}
	return m
}

// Fields returns the layout the mapper was built from.
func (m *HeaderMapper) Fields() []FieldConfig {
	return m.fields
}

func (m *HeaderMapper) normalize(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, affix := range m.stripAffixes {
		h = strings.TrimPrefix(h, affix)
		h = strings.TrimSuffix(h, affix)
	}
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, ".", "_")
	h = strings.ReplaceAll(h, "-", "_")
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return strings.Trim(h, "_")
}

// Analyze maps the file headers once per file. A required field with
// no matching column fails the file; callers turn MissingRequired into
// a MappingError. Confidence is the mapped share of canonical fields.
func (m *HeaderMapper) Analyze(headers []string) MappingAnalysis {
	analysis := MappingAnalysis{Mapped: make(map[string]int)}

	for idx, header := range headers {
		normalized := m.normalize(header)
		if normalized == "" {
			continue
		}
		if canonical, ok := m.aliasIndex[normalized]; ok {
			if _, taken := analysis.Mapped[canonical]; !taken {
				analysis.Mapped[canonical] = idx
			}
			continue
		}
		analysis.Unmapped = append(analysis.Unmapped, m.suggest(header, normalized))
	}

	for _, field := range m.fields {
		if field.Required {
			if _, ok := analysis.Mapped[field.Name]; !ok {
				analysis.MissingRequired = append(analysis.MissingRequired, field.Name)
			}
		}
	}

	if len(m.fields) > 0 {
		analysis.Confidence = float64(len(analysis.Mapped)) / float64(len(m.fields))
	}
	return analysis
}

// MapRow applies a resolved mapping to one data row. Required fields
// empty on this row become row-level errors, not file-level ones;
// optional fields fall back to their configured default.
func (m *HeaderMapper) MapRow(raw domain.RawRow, analysis MappingAnalysis) domain.MappedRow {
	mapped := domain.MappedRow{
		RowNumber: raw.RowNumber,
		Values:    make(map[string]string, len(m.fields)),
		Unmapped:  make([]string, 0),
	}
	for _, unmappedHeader := range analysis.Unmapped {
		mapped.Unmapped = append(mapped.Unmapped, unmappedHeader.Header)
	}

	for _, field := range m.fields {
		idx, ok := analysis.Mapped[field.Name]
		value := ""
		if ok && idx < len(raw.Cells) {
			value = strings.TrimSpace(raw.Cells[idx])
		}
		if value == "" && field.Default != "" {
			value = field.Default
		}
		if value == "" {
			if field.Required {
				mapped.Missing = append(mapped.Missing, field.Name)
				mapped.AddError(field.Name, "", "required field is empty")
			}
			continue
		}
		mapped.Values[field.Name] = value
	}

	return mapped
}

// suggest finds the closest canonical name for an unmapped header.
func (m *HeaderMapper) suggest(header, normalized string) HeaderSuggestion {
	suggestion := HeaderSuggestion{Header: header}
	best := -1
	for _, field := range m.fields {
		candidate := m.normalize(field.Name)
		distance := levenshtein.ComputeDistance(normalized, candidate)
		if best == -1 || distance < best {
			best = distance
			suggestion.Suggestion = field.Name
			longest := len(normalized)
			if l := len(candidate); l > longest {
				longest = l
			}
			if longest > 0 {
				suggestion.Score = 1.0 - float64(distance)/float64(longest)
			}
		}
	}
	return suggestion
}
