package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer

	table := NewTable(&buf, []string{"view", "resource"})
	table.AddRow([]string{"coupons", "coupons"})
	table.AddRow([]string{"payment-weekly", "payments.weekly"})
	require.Equal(t, 2, table.Len())
	require.NoError(t, table.Render())

	out := buf.String()
	assert.Contains(t, out, "VIEW")
	assert.Contains(t, out, "payment-weekly")
	assert.Contains(t, out, "payments.weekly")
}
