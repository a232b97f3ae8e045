package listquery

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Formatter turns a raw field value into its export text.
type Formatter func(v any) string

// Column is one export column.
type Column struct {
	Key    string    `json:"key"`
	Header string    `json:"header"`
	Format Formatter `json:"-"`
}

// Text renders the column cell of rec, unescaped.
func (c Column) Text(rec Record) string {
	v, _ := Lookup(rec, c.Key)
	if c.Format != nil {
		return c.Format(v)
	}
	return displayString(v)
}

// ExportProjection renders records as CSV-escaped rows: a header row
// followed by one row per record. Column keys are checked against the first
// record only.
func ExportProjection(records []Record, columns []Column) ([][]string, error) {
	if len(records) > 0 {
		for _, col := range columns {
			if _, ok := Lookup(records[0], col.Key); !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownColumnKey, col.Key)
			}
		}
	}

	rows := make([][]string, 0, len(records)+1)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = EscapeField(col.Header)
	}
	rows = append(rows, header)

	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = EscapeField(col.Text(rec))
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// EscapeField quotes s when it contains a comma, a double quote or a line
// break, doubling any inner quotes.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// EncodeCSV joins already escaped rows into CSV text.
func EncodeCSV(rows [][]string) []byte {
	var buf bytes.Buffer
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(strings.Join(row, ","))
	}
	return buf.Bytes()
}

// DateFormatter formats dates and timestamps with layout. Values that are
// not dates are rendered unchanged.
func DateFormatter(layout string) Formatter {
	return func(v any) string {
		if t, ok := parseDate(v); ok {
			return t.Format(layout)
		}
		return displayString(v)
	}
}

// Capitalize turns enum values such as "fully_paid" into "Fully Paid".
func Capitalize(v any) string {
	s := displayString(v)
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "_", " ")
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// Number formats numeric values with a fixed number of decimals.
func Number(decimals int) Formatter {
	return func(v any) string {
		s, ok := scalarString(v)
		if !ok || s == "" {
			return displayString(v)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		return strconv.FormatFloat(f, 'f', decimals, 64)
	}
}
