package listquery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportProjection_EscapesFields(t *testing.T) {
	records := []Record{
		{"vendor": "Acme, Inc.", "product": `5" Display`},
		{"vendor": "Plain", "product": "line\nbreak"},
	}
	columns := []Column{
		{Key: "vendor", Header: "Vendor"},
		{Key: "product", Header: "Product"},
	}

	rows, err := ExportProjection(records, columns)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Vendor", "Product"}, rows[0])
	assert.Equal(t, []string{`"Acme, Inc."`, `"5"" Display"`}, rows[1])
	assert.Equal(t, []string{"Plain", "\"line\nbreak\""}, rows[2])
}

func TestExportProjection_AppliesFormatters(t *testing.T) {
	records := []Record{
		{"status": "fully_paid", "validityDate": "2026-01-15T10:00:00Z", "amount": json.Number("12.5")},
	}
	columns := []Column{
		{Key: "status", Header: "Status", Format: Capitalize},
		{Key: "validityDate", Header: "Validity", Format: DateFormatter("01/02/2006")},
		{Key: "amount", Header: "Amount", Format: Number(2)},
	}

	rows, err := ExportProjection(records, columns)
	require.NoError(t, err)

	assert.Equal(t, []string{"Fully Paid", "01/15/2026", "12.50"}, rows[1])
}

func TestExportProjection_FormatterOutputIsEscaped(t *testing.T) {
	records := []Record{{"amount": 1234.5}}
	columns := []Column{{Key: "amount", Header: "Amount, INR", Format: func(v any) string { return "1,234.50" }}}

	rows, err := ExportProjection(records, columns)
	require.NoError(t, err)

	assert.Equal(t, []string{`"Amount, INR"`}, rows[0])
	assert.Equal(t, []string{`"1,234.50"`}, rows[1])
}

func TestExportProjection_UnknownColumnKey(t *testing.T) {
	records := []Record{{"name": "A"}}
	columns := []Column{{Key: "name", Header: "Name"}, {Key: "code", Header: "Code"}}

	_, err := ExportProjection(records, columns)
	assert.ErrorIs(t, err, ErrUnknownColumnKey)
}

func TestExportProjection_OnlyFirstRecordIsChecked(t *testing.T) {
	records := []Record{{"name": "A", "code": "X"}, {"name": "B"}}
	columns := []Column{{Key: "name", Header: "Name"}, {Key: "code", Header: "Code"}}

	rows, err := ExportProjection(records, columns)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", ""}, rows[2])
}

func TestExportProjection_EmptyRecordsYieldHeaderOnly(t *testing.T) {
	rows, err := ExportProjection(nil, []Column{{Key: "name", Header: "Name"}})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"Name"}}, rows)
}

func TestExportProjection_DoesNotMutateRecords(t *testing.T) {
	records := []Record{{"name": "Acme, Inc.", "vendorId": map[string]any{"businessName": "Acme"}}}
	columns := []Column{
		{Key: "name", Header: "Name", Format: Capitalize},
		{Key: "vendorId.businessName", Header: "Business"},
		{Key: "vendorId", Header: "Vendor"},
	}

	rows, err := ExportProjection(records, columns)
	require.NoError(t, err)

	assert.Equal(t, "Acme, Inc.", records[0]["name"])
	assert.Equal(t, []string{`"Acme, Inc."`, "Acme", `"{""businessName"":""Acme""}"`}, rows[1])
}

func TestEncodeCSV(t *testing.T) {
	rows := [][]string{{"Name", "Code"}, {`"Acme, Inc."`, "A1"}}

	assert.Equal(t, "Name,Code\n\"Acme, Inc.\",A1", string(EncodeCSV(rows)))
}

func TestEscapeField(t *testing.T) {
	tests := map[string]string{
		"plain":         "plain",
		"":              "",
		"a,b":           `"a,b"`,
		`say "hi"`:      `"say ""hi"""`,
		"carriage\rret": "\"carriage\rret\"",
	}
	for in, want := range tests {
		assert.Equal(t, want, EscapeField(in), "input %q", in)
	}
}

func TestColumnText(t *testing.T) {
	rec := Record{"name": `Say "hi", ok`, "meta": map[string]any{"tags": []any{"a"}}}

	assert.Equal(t, `Say "hi", ok`, Column{Key: "name"}.Text(rec))
	assert.Equal(t, `{"tags":["a"]}`, Column{Key: "meta"}.Text(rec))
	assert.Equal(t, "", Column{Key: "missing"}.Text(rec))
	assert.Equal(t, "A", Column{Key: "meta.tags", Format: func(v any) string { return "A" }}.Text(rec))
}
