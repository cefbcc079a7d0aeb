// Package csvimport implements the CSV ingestion pipeline: a quoted-field
// tokenizer, a row normalizer for heterogeneous PubMed export schemas, and
// a sequential batch importer with per-row error classification.
package csvimport

import (
	"strings"

	"github.com/synaptica/paper-aggregation-service/internal/domain"
)

// SplitLine tokenizes one CSV line into an ordered sequence of fields.
// It handles RFC-4180-style quoting: a quote toggles quote state, a doubled
// quote inside a quoted field emits a literal quote, and commas inside
// quotes are literal. Every field is trimmed of surrounding whitespace.
// The final field is emitted when the line ends.
func SplitLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				// Escaped quote inside a quoted field.
				current.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}

// HeaderMap maps a column name to its field index. It is built once per
// CSV file from the first non-empty line and is immutable thereafter.
type HeaderMap map[string]int

// BuildHeaderMap creates a HeaderMap from tokenized header fields.
// Residual quotes are stripped from column names.
func BuildHeaderMap(fields []string) HeaderMap {
	hm := make(HeaderMap, len(fields))
	for i, name := range fields {
		name = strings.TrimSpace(strings.Trim(name, `"`))
		if name == "" {
			continue
		}
		hm[name] = i
	}
	return hm
}

// Row is one tokenized CSV data line keyed by the file's header.
type Row struct {
	header HeaderMap
	fields []string
}

// Get returns the trimmed value of the named column, or the empty string
// if the column is absent or the row is short.
func (r Row) Get(column string) string {
	idx, ok := r.header[column]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return r.fields[idx]
}

// ParseRows tokenizes an entire CSV document. The first non-empty line is
// treated as the header; empty lines are skipped. Rows missing both a
// Title and a usable PMID (digits after stripping) are excluded before
// normalization is attempted.
func ParseRows(csvText string) ([]Row, error) {
	lines := strings.Split(csvText, "\n")

	var header HeaderMap
	var rows []Row
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := SplitLine(line)
		if header == nil {
			header = BuildHeaderMap(fields)
			continue
		}

		row := Row{header: header, fields: fields}
		if row.Get("Title") == "" && stripNonDigits(row.Get("PMID")) == "" {
			continue
		}
		rows = append(rows, row)
	}

	if header == nil {
		return nil, domain.NewValidationError("csv", "input contains no header line")
	}

	return rows, nil
}
