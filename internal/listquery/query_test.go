package listquery

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var couponSpecs = []FieldSpec{
	{Key: "name", Kind: KindText, Searchable: true},
	{Key: "category", Kind: KindEnum, Searchable: true},
	{Key: "couponCode", Kind: KindText, Searchable: true},
	{Key: "status", Kind: KindEnum},
	{Key: "validityDate", Kind: KindDate},
}

func sampleCoupons() []Record {
	return []Record{
		{"name": "Blue Deal", "category": "Food", "couponCode": "BLUE10", "status": "approved", "validityDate": "2026-03-01T00:00:00Z"},
		{"name": "Red Deal", "category": "Travel", "couponCode": "RED20", "status": "pending", "validityDate": "2026-04-01T00:00:00Z"},
		{"name": "Green Saver", "category": "Food", "couponCode": "GREEN5", "status": "approved", "validityDate": "2026-03-01"},
		{"name": "Éclair Treat", "category": "Bakery", "couponCode": "SWEET", "status": "rejected"},
	}
}

func numbered(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{"name": fmt.Sprintf("coupon-%02d", i), "status": "approved"}
	}
	return records
}

func TestQuery_EmptyStateMatchesEverything(t *testing.T) {
	records := sampleCoupons()

	state := DefaultState()
	state.PageSize = 2

	result, err := Query(records, couponSpecs, state)
	require.NoError(t, err)

	assert.Equal(t, len(records), result.TotalMatched)
	assert.Equal(t, 2, result.TotalPages)
	assert.Len(t, result.Items, 2)
}

func TestQuery_EmptyRecords(t *testing.T) {
	result, err := Query(nil, couponSpecs, DefaultState())
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalMatched)
	assert.Equal(t, 0, result.TotalPages)
	assert.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
}

func TestQuery_PageBeyondEndIsEmpty(t *testing.T) {
	state := DefaultState()
	state.Page = 5

	result, err := Query(numbered(12), couponSpecs, state)
	require.NoError(t, err)

	assert.Empty(t, result.Items)
	assert.Equal(t, 12, result.TotalMatched)
	assert.Equal(t, 2, result.TotalPages)
}

func TestQuery_PaginationArithmetic(t *testing.T) {
	records := numbered(23)

	state := DefaultState()
	state.Page = 3

	result, err := Query(records, couponSpecs, state)
	require.NoError(t, err)

	assert.Equal(t, 23, result.TotalMatched)
	assert.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "coupon-20", result.Items[0]["name"])
	assert.Equal(t, "coupon-22", result.Items[2]["name"])
}

func TestQuery_Idempotent(t *testing.T) {
	records := sampleCoupons()
	state := QueryState{SearchTerm: "deal", Filters: map[string]string{"status": "approved"}, Page: 1, PageSize: 10}

	first, err := Query(records, couponSpecs, state)
	require.NoError(t, err)
	second, err := Query(records, couponSpecs, state)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestQuery_PreservesInputOrder(t *testing.T) {
	records := sampleCoupons()
	state := QueryState{Filters: map[string]string{"category": "Food"}, Page: 1, PageSize: 10}

	result, err := Query(records, couponSpecs, state)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "Blue Deal", result.Items[0]["name"])
	assert.Equal(t, "Green Saver", result.Items[1]["name"])
}

func TestQuery_AllSentinelEqualsOmittedFilter(t *testing.T) {
	records := sampleCoupons()

	withSentinel, err := Query(records, couponSpecs, QueryState{
		Filters:  map[string]string{"category": AllValues, "status": "approved"},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	omitted, err := Query(records, couponSpecs, QueryState{
		Filters:  map[string]string{"status": "approved"},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, omitted.TotalMatched, withSentinel.TotalMatched)
	assert.Equal(t, 2, withSentinel.TotalMatched)
}

func TestQuery_CaseInsensitiveSearch(t *testing.T) {
	records := []Record{{"name": "Blue Deal"}, {"name": "Red Deal"}}
	specs := []FieldSpec{{Key: "name", Kind: KindText, Searchable: true}}

	result, err := Query(records, specs, QueryState{SearchTerm: "blue", Page: 1, PageSize: 10})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalMatched)
	assert.Equal(t, "Blue Deal", result.Items[0]["name"])
}

func TestQuery_SearchFoldsNonASCII(t *testing.T) {
	result, err := Query(sampleCoupons(), couponSpecs, QueryState{SearchTerm: "ÉCLAIR", Page: 1, PageSize: 10})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalMatched)
	assert.Equal(t, "Éclair Treat", result.Items[0]["name"])
}

func TestQuery_SearchOnlyInspectsSearchableFields(t *testing.T) {
	result, err := Query(sampleCoupons(), couponSpecs, QueryState{SearchTerm: "pending", Page: 1, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalMatched)
}

func TestQuery_CombinedFilterAndSearch(t *testing.T) {
	records := []Record{
		{"name": "A", "status": "approved"},
		{"name": "Ab", "status": "pending"},
	}
	specs := []FieldSpec{
		{Key: "name", Kind: KindText, Searchable: true},
		{Key: "status", Kind: KindEnum},
	}

	result, err := Query(records, specs, QueryState{
		SearchTerm: "a",
		Filters:    map[string]string{"status": "approved"},
		Page:       1,
		PageSize:   10,
	})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalMatched)
	assert.Equal(t, "A", result.Items[0]["name"])
}

func TestQuery_UnknownFilterKeysAreIgnored(t *testing.T) {
	result, err := Query(sampleCoupons(), couponSpecs, QueryState{
		Filters:  map[string]string{"merchant": "nobody"},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalMatched)
}

func TestQuery_FilterRequiresExactValue(t *testing.T) {
	result, err := Query(sampleCoupons(), couponSpecs, QueryState{
		Filters:  map[string]string{"status": "Approved"},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalMatched)
}

func TestQuery_DateFilterComparesCalendarDay(t *testing.T) {
	result, err := Query(sampleCoupons(), couponSpecs, QueryState{
		Filters:  map[string]string{"validityDate": "2026-03-01"},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	require.Equal(t, 2, result.TotalMatched)
	assert.Equal(t, "Blue Deal", result.Items[0]["name"])
	assert.Equal(t, "Green Saver", result.Items[1]["name"])
}

func TestQuery_TypedValues(t *testing.T) {
	records := []Record{
		{"title": "one", "isRead": false, "createdAt": time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)},
		{"title": "two", "isRead": true, "createdAt": time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC)},
	}
	specs := []FieldSpec{
		{Key: "title", Kind: KindText, Searchable: true},
		{Key: "isRead", Kind: KindEnum},
		{Key: "createdAt", Kind: KindDate},
	}

	result, err := Query(records, specs, QueryState{
		Filters:  map[string]string{"isRead": "false", "createdAt": "2026-01-02"},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalMatched)
	assert.Equal(t, "one", result.Items[0]["title"])
}

func TestQuery_NestedFields(t *testing.T) {
	records := []Record{
		{"name": "A", "vendorId": map[string]any{"businessName": "Acme Foods"}},
		{"name": "B", "vendorId": map[string]any{"businessName": "Beta Travel"}},
		{"name": "C"},
	}
	specs := []FieldSpec{{Key: "vendorId.businessName", Kind: KindText, Searchable: true}}

	result, err := Query(records, specs, QueryState{SearchTerm: "acme", Page: 1, PageSize: 10})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalMatched)
	assert.Equal(t, "A", result.Items[0]["name"])
}

func TestQuery_ClampsNonPositivePaging(t *testing.T) {
	result, err := Query(numbered(3), couponSpecs, QueryState{Page: 0, PageSize: 0})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalMatched)
	assert.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "coupon-00", result.Items[0]["name"])

	page, size := QueryState{Page: -2, PageSize: 0}.Paging()
	assert.Equal(t, 1, page)
	assert.Equal(t, 1, size)
}

func TestQuery_HugePageSize(t *testing.T) {
	state := DefaultState()
	state.PageSize = math.MaxInt

	result, err := Query(numbered(2), couponSpecs, state)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalMatched)
	assert.Equal(t, 1, result.TotalPages)
	assert.Len(t, result.Items, 2)

	state.Page = math.MaxInt
	result, err = Query(numbered(2), couponSpecs, state)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 1, result.TotalPages)
}

func TestQuery_LargePageNumber(t *testing.T) {
	state := DefaultState()
	state.Page = math.MaxInt
	state.PageSize = 3

	result, err := Query(numbered(7), couponSpecs, state)
	require.NoError(t, err)

	assert.Empty(t, result.Items)
	assert.Equal(t, 3, result.TotalPages)
}

func TestQuery_DoesNotMutateState(t *testing.T) {
	state := QueryState{Filters: map[string]string{"status": "approved"}, Page: -1, PageSize: -5}
	_, err := Query(sampleCoupons(), couponSpecs, state)
	require.NoError(t, err)

	assert.Equal(t, -1, state.Page)
	assert.Equal(t, -5, state.PageSize)
	assert.Equal(t, map[string]string{"status": "approved"}, state.Filters)
}

func TestQuery_InvalidFieldSpecs(t *testing.T) {
	tests := []struct {
		name  string
		specs []FieldSpec
	}{
		{name: "empty key", specs: []FieldSpec{{Key: "", Kind: KindText}}},
		{name: "duplicate key", specs: []FieldSpec{{Key: "name", Kind: KindText}, {Key: "name", Kind: KindEnum}}},
		{name: "unknown kind", specs: []FieldSpec{{Key: "name", Kind: "fuzzy"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Query(sampleCoupons(), tt.specs, DefaultState())
			assert.ErrorIs(t, err, ErrInvalidFieldSpec)
		})
	}
}

func TestQuery_EmptyKindIsText(t *testing.T) {
	specs := []FieldSpec{{Key: "name", Searchable: true}, {Key: "status"}}
	require.NoError(t, ValidateSpecs(specs))

	state := DefaultState()
	state.SearchTerm = "green"
	state.Filters["status"] = "approved"

	result, err := Query(sampleCoupons(), specs, state)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Green Saver", result.Items[0]["name"])
}

func TestDistinctValues(t *testing.T) {
	values := DistinctValues(sampleCoupons(), "category")
	assert.Equal(t, []string{"Food", "Travel", "Bakery"}, values)

	assert.Empty(t, DistinctValues(sampleCoupons(), "missing"))
}

func TestCountBy(t *testing.T) {
	counts := CountBy(sampleCoupons(), "status")
	assert.Equal(t, map[string]int{"approved": 2, "pending": 1, "rejected": 1}, counts)
}
