package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendor-dashboard-api/internal/listquery"
)

const couponsResponse = `{"success":true,"coupons":[
	{"_id":"c1","name":"Pizza Night","category":"Food","couponCode":"PIZZA","discountPercentage":15,"status":"approved","requiredCoins":5,"usedCount":1,"maxUsage":50,"validityDate":"2026-03-01T00:00:00.000Z","createdAt":"2026-01-02T10:00:00.000Z"},
	{"_id":"c2","name":"Beach Trip","category":"Travel","couponCode":"SUN","discountPercentage":20,"status":"pending","requiredCoins":10,"usedCount":0,"maxUsage":10,"validityDate":"2026-04-01T00:00:00.000Z","createdAt":"2026-01-03T10:00:00.000Z"},
	{"_id":"c3","name":"Pizza, Large","category":"Food","couponCode":"BIG","discountPercentage":5,"status":"rejected","requiredCoins":2,"usedCount":0,"maxUsage":5,"validityDate":"2026-05-01T00:00:00.000Z","createdAt":"2026-01-04T10:00:00.000Z"}
]}`

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestViews(t *testing.T) {
	out, err := execute(t, "", "views")
	require.NoError(t, err)

	assert.Contains(t, out, "coupons")
	assert.Contains(t, out, "payment-monthly")
	assert.Contains(t, out, "name, category, couponCode")
}

func TestViews_JSON(t *testing.T) {
	out, err := execute(t, "", "views", "--json")
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 6)
}

func TestQuery_Table(t *testing.T) {
	path := writeFile(t, couponsResponse)

	out, err := execute(t, "", "query", "--view", "coupons", "-f", path, "-q", "pizza")
	require.NoError(t, err)

	assert.Contains(t, out, "Pizza Night")
	assert.Contains(t, out, "Pizza, Large")
	assert.NotContains(t, out, "Beach Trip")
	assert.Contains(t, out, "page 1 of 1, 2 matched")
}

func TestQuery_JSONWithFilterAndPaging(t *testing.T) {
	path := writeFile(t, couponsResponse)

	out, err := execute(t, "", "query", "--view", "coupons", "-f", path,
		"--filter", "category=Food", "--page-size", "1", "--page", "2", "--json")
	require.NoError(t, err)

	var result listquery.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.TotalMatched)
	assert.Equal(t, 2, result.TotalPages)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "c3", result.Items[0]["_id"])
}

func TestQuery_Stdin(t *testing.T) {
	out, err := execute(t, `[{"title":"Welcome","message":"hi","type":"system","isRead":false,"createdAt":"2026-01-05T09:30:00Z"}]`,
		"query", "--view", "notifications", "-f", "-")
	require.NoError(t, err)

	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "1/5/2026 9:30 AM")
}

func TestQuery_Errors(t *testing.T) {
	path := writeFile(t, couponsResponse)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown view", []string{"query", "--view", "invoices", "-f", path}, "unknown view"},
		{"malformed filter", []string{"query", "--view", "coupons", "-f", path, "--filter", "status"}, "invalid filter"},
		{"filter outside view", []string{"query", "--view", "coupons", "-f", path, "--filter", "maxUsage=5"}, "no field"},
		{"missing file", []string{"query", "--view", "coupons", "-f", filepath.Join(t.TempDir(), "nope.json")}, "no such file"},
		{"missing view flag", []string{"query", "-f", path}, "required flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExport_Stdout(t *testing.T) {
	path := writeFile(t, couponsResponse)

	out, err := execute(t, "", "export", "--view", "coupons", "-f", path, "--filter", "category=Food")
	require.NoError(t, err)

	assert.Equal(t,
		"Name,Category,Discount %,Code,Status,Required Coins,Used,Max Usage,Validity,Created\n"+
			"Pizza Night,Food,15,PIZZA,Approved,5,1,50,3/1/2026,1/2/2026\n"+
			`"Pizza, Large",Food,5,BIG,Rejected,2,0,5,5/1/2026,1/4/2026`,
		out)
}

func TestExport_File(t *testing.T) {
	path := writeFile(t, `{"weeks":[{"weekLabel":"Jan 5 - Jan 11","totalCoupons":3,"totalAmountUSD":7,"amountPaidUSD":7,"amountPendingUSD":0,"paymentStatus":"fully_paid"}]}`)
	outPath := filepath.Join(t.TempDir(), "weekly.csv")

	out, err := execute(t, "", "export", "--view", "payment-weekly", "-f", path, "-o", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t,
		"Week,Coupons,Total (USD),Paid (USD),Pending (USD),Status\n"+
			"Jan 5 - Jan 11,3,7.00,7.00,0.00,Fully Paid",
		string(data))
}
