package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

// Date layouts seen in equipment exports. 4-digit-year layouts first,
// day-first before month-first because the loaders export pt-BR dates.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"01/02/2006",
	"02/01/06",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// shiftSynonyms normalizes free-text shift names from the loaders.
var shiftSynonyms = map[string]domain.Shift{
	"manha":      domain.ShiftMorning,
	"manhã":      domain.ShiftMorning,
	"matutino":   domain.ShiftMorning,
	"am":         domain.ShiftMorning,
	"1":          domain.ShiftMorning,
	"tarde":      domain.ShiftAfternoon,
	"vespertino": domain.ShiftAfternoon,
	"pm":         domain.ShiftAfternoon,
	"2":          domain.ShiftAfternoon,
	"noite":      domain.ShiftNight,
	"noturno":    domain.ShiftNight,
	"3":          domain.ShiftNight,
}

// equipmentSynonyms folds equipment labels into the two accepted
// feed-loading families.
var equipmentSynonyms = map[string]string{
	"vagao":            "vagao",
	"vagão":            "vagao",
	"vagao misturador": "vagao",
	"mixer":            "vagao",
	"mixer wagon":      "vagao",
	"carregadeira":     "carregadeira",
	"pa carregadeira":  "carregadeira",
	"pá carregadeira":  "carregadeira",
	"loader":           "carregadeira",
}

// routeSynonyms folds treatment application routes.
var routeSynonyms = map[string]string{
	"oral":       "oral",
	"vo":         "oral",
	"injetavel":  "injetavel",
	"injetável":  "injetavel",
	"im":         "injetavel",
	"sc":         "injetavel",
	"subcutaneo": "injetavel",
	"subcutâneo": "injetavel",
	"topico":     "topico",
	"tópico":     "topico",
	"pour-on":    "topico",
	"pour on":    "topico",
}

// Cleanser normalizes raw field values, emitting warnings instead of
// errors whenever a value is recoverable.
type Cleanser struct {
	warnings []domain.CleansingWarning
}

// NewCleanser creates a cleanser; warnings accumulate per file.
func NewCleanser() *Cleanser {
	return &Cleanser{}
}

// Warnings returns every cleansing action recorded so far.
func (c *Cleanser) Warnings() []domain.CleansingWarning {
	return c.warnings
}

func (c *Cleanser) warn(rowNumber int, field, message, original, cleaned string) {
	c.warnings = append(c.warnings, domain.CleansingWarning{
		RowNumber: rowNumber,
		Field:     field,
		Message:   message,
		Original:  original,
		Cleaned:   cleaned,
	})
}

// Text trims, collapses internal whitespace and title-cases the value.
func (c *Cleanser) Text(rowNumber int, field, value string) string {
	cleaned := strings.Join(strings.Fields(value), " ")
	if cleaned != "" {
		cleaned = strings.ToUpper(cleaned[:1]) + cleaned[1:]
	}
	if cleaned != value {
		c.warn(rowNumber, field, "normalized text", value, cleaned)
	}
	return cleaned
}

// Code trims and uppercases a business code (pen, diet, handler).
func (c *Cleanser) Code(rowNumber int, field, value string) string {
	cleaned := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	if cleaned != value {
		c.warn(rowNumber, field, "normalized code", value, cleaned)
	}
	return cleaned
}

// Decimal parses a locale-ambiguous number. Both "1.234,56" and
// "1234.56" are accepted; the decimal separator is disambiguated by
// the presence and position of comma versus dot.
func (c *Cleanser) Decimal(rowNumber int, field, value string) (float64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty numeric value")
	}

	normalized := raw
	lastComma := strings.LastIndex(normalized, ",")
	lastDot := strings.LastIndex(normalized, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Rightmost separator wins as the decimal mark.
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(normalized, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(normalized, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(normalized, ",") > 1 {
			// Multiple commas can only be thousands separators.
			normalized = strings.ReplaceAll(normalized, ",", "")
		} else {
			normalized = strings.Replace(normalized, ",", ".", 1)
		}
	}

	parsed, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse %q as number", raw)
	}
	if normalized != raw {
		c.warn(rowNumber, field, "normalized decimal separator", raw, normalized)
	}
	return parsed, nil
}

// Integer parses a whole number, tolerating decimal notation when the
// fraction is zero.
func (c *Cleanser) Integer(rowNumber int, field, value string) (int, error) {
	if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return i, nil
	}
	f, err := c.Decimal(rowNumber, field, value)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("value %q is not a whole number", value)
	}
	return int(f), nil
}

// Date parses a date across the known export layouts.
func (c *Cleanser) Date(rowNumber int, field, value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			canonical := ts.Format("2006-01-02")
			if canonical != raw {
				c.warn(rowNumber, field, "normalized date format", raw, canonical)
			}
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}

// Shift normalizes a shift name through the synonym table.
func (c *Cleanser) Shift(rowNumber int, field, value string) (domain.Shift, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	shift, ok := shiftSynonyms[key]
	if !ok {
		return "", fmt.Errorf("unknown shift %q", value)
	}
	if string(shift) != value {
		c.warn(rowNumber, field, "normalized shift name", value, string(shift))
	}
	return shift, nil
}

// Equipment normalizes an equipment label through the synonym table.
// Unknown labels are returned lowercased so the validator can reject
// them with the original value visible.
func (c *Cleanser) Equipment(rowNumber int, field, value string) string {
	key := strings.ToLower(strings.Join(strings.Fields(value), " "))
	if canonical, ok := equipmentSynonyms[key]; ok {
		if canonical != value {
			c.warn(rowNumber, field, "normalized equipment type", value, canonical)
		}
		return canonical
	}
	return key
}

// Route normalizes a treatment application route.
func (c *Cleanser) Route(rowNumber int, field, value string) string {
	key := strings.ToLower(strings.Join(strings.Fields(value), " "))
	if canonical, ok := routeSynonyms[key]; ok {
		if canonical != value {
			c.warn(rowNumber, field, "normalized treatment route", value, canonical)
		}
		return canonical
	}
	return key
}
