package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// ParserConfig controls separator detection policy.
type ParserConfig struct {
	SampleLines   int
	MinConfidence float64
	// FallbackSeparator is used when detection confidence is below
	// MinConfidence. Zero means fail the file instead.
	FallbackSeparator rune
}

// DefaultParserConfig falls back to semicolon, the delimiter the
// loader firmware exports by default.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		SampleLines:       DefaultSampleLines,
		MinConfidence:     DefaultMinConfidence,
		FallbackSeparator: ';',
	}
}

// Table is a parsed upload: a header row plus positional data rows.
type Table struct {
	Headers []string
	Rows    []domain.RawRow
	// Separator is the delimiter actually used (csv only).
	Separator rune
	// SeparatorFellBack is true when detection confidence was below
	// threshold and the configured fallback was used.
	SeparatorFellBack bool
}

// ParseTable reads an uploaded byte stream into rows. CSV delimiters
// are detected statistically; .xlsx files go through excelize.
func ParseTable(fileName string, data io.Reader, cfg ParserConfig) (*Table, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return nil, &domain.ParseError{FileName: fileName, Err: fmt.Errorf("failed to read upload: %w", err)}
	}
	if len(payload) == 0 {
		return nil, &domain.ParseError{FileName: fileName, Err: domain.ErrEmptyFile}
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv", ".txt", "":
		return parseCSV(fileName, payload, cfg)
	case ".xlsx":
		return parseExcel(fileName, payload)
	default:
		return nil, &domain.ParseError{FileName: fileName, Err: fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)}
	}
}

func parseCSV(fileName string, payload []byte, cfg ParserConfig) (*Table, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
		payload = payload[len(byteOrderMark):]
	}

	detection := DetectSeparator(string(payload), cfg.SampleLines)
	separator := detection.Separator
	fellBack := false
	if detection.Confidence < cfg.MinConfidence {
		if cfg.FallbackSeparator == 0 {
			return nil, &domain.ParseError{
				FileName: fileName,
				Err:      fmt.Errorf("separator detection confidence %.2f below threshold %.2f", detection.Confidence, cfg.MinConfidence),
			}
		}
		separator = cfg.FallbackSeparator
		fellBack = true
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = separator
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, &domain.ParseError{FileName: fileName, Err: fmt.Errorf("failed to read csv: %w", err)}
	}

	table, err := buildTable(fileName, records)
	if err != nil {
		return nil, err
	}
	table.Separator = separator
	table.SeparatorFellBack = fellBack
	return table, nil
}

func parseExcel(fileName string, payload []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.ParseError{FileName: fileName, Err: fmt.Errorf("failed to open xlsx: %w", err)}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.ParseError{FileName: fileName, Err: fmt.Errorf("excel file has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &domain.ParseError{FileName: fileName, Err: fmt.Errorf("failed to read rows from xlsx: %w", err)}
	}

	return buildTable(fileName, rows)
}

// buildTable takes the first non-empty record as the header row and
// numbers data rows by their 1-based position in the file, so error
// messages point at the line the user sees in the export.
func buildTable(fileName string, records [][]string) (*Table, error) {
	table := &Table{}
	headerLine := -1

	for idx, record := range records {
		if rowEmpty(record) {
			continue
		}
		if headerLine == -1 {
			headerLine = idx
			table.Headers = make([]string, len(record))
			for i, cell := range record {
				table.Headers[i] = strings.TrimSpace(cell)
			}
			continue
		}
		table.Rows = append(table.Rows, domain.RawRow{
			RowNumber: idx + 1,
			Cells:     padRow(record, len(table.Headers)),
			Headers:   table.Headers,
		})
	}

	if headerLine == -1 {
		return nil, &domain.ParseError{FileName: fileName, Err: fmt.Errorf("no header row detected")}
	}
	return table, nil
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
