// Package views defines the dashboard list views. Every view is served by
// the same listquery engine; only its field and column configuration
// differs.
package views

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"vendor-dashboard-api/internal/listquery"
	"vendor-dashboard-api/internal/models"
)

// MaxPageSize bounds page sizes requested by clients.
const MaxPageSize = 100

// Query parameter names understood by ParseState.
const (
	ParamSearch   = "q"
	ParamPage     = "page"
	ParamPageSize = "page_size"
	FilterPrefix  = "filter."
)

var ErrUnknownView = errors.New("views: unknown view")

const (
	dateLayout     = "1/2/2006"
	dateTimeLayout = "1/2/2006 3:04 PM"
)

// View is the configuration of one listing page.
type View struct {
	Name            string                `json:"name"`
	Title           string                `json:"title"`
	Resource        string                `json:"resource"`
	Fields          []listquery.FieldSpec `json:"fields"`
	Columns         []listquery.Column    `json:"columns"`
	DefaultPageSize int                   `json:"default_page_size"`
	ExportFilename  string                `json:"export_filename"`
}

var registry = []View{
	{
		Name:     "coupons",
		Title:    "My Coupons",
		Resource: models.ResourceCoupons,
		Fields: []listquery.FieldSpec{
			{Key: "name", Kind: listquery.KindText, Searchable: true},
			{Key: "category", Kind: listquery.KindEnum, Searchable: true},
			{Key: "couponCode", Kind: listquery.KindText, Searchable: true},
			{Key: "status", Kind: listquery.KindEnum},
			{Key: "validityDate", Kind: listquery.KindDate},
			{Key: "createdAt", Kind: listquery.KindDate},
		},
		Columns: []listquery.Column{
			{Key: "name", Header: "Name"},
			{Key: "category", Header: "Category"},
			{Key: "discountPercentage", Header: "Discount %"},
			{Key: "couponCode", Header: "Code"},
			{Key: "status", Header: "Status", Format: listquery.Capitalize},
			{Key: "requiredCoins", Header: "Required Coins"},
			{Key: "usedCount", Header: "Used"},
			{Key: "maxUsage", Header: "Max Usage"},
			{Key: "validityDate", Header: "Validity", Format: listquery.DateFormatter(dateLayout)},
			{Key: "createdAt", Header: "Created", Format: listquery.DateFormatter(dateLayout)},
		},
		DefaultPageSize: 10,
		ExportFilename:  "vendor-coupons.csv",
	},
	{
		Name:     "payment-history",
		Title:    "Payment History",
		Resource: models.ResourcePaymentHistory,
		Fields: []listquery.FieldSpec{
			{Key: "month", Kind: listquery.KindText, Searchable: true},
			{Key: "paymentStatus", Kind: listquery.KindEnum},
		},
		Columns: []listquery.Column{
			{Key: "month", Header: "Month"},
			{Key: "totalCouponsClaimed", Header: "Coupons"},
			{Key: "totalAmount", Header: "Total Amount", Format: listquery.Number(2)},
			{Key: "amountPaid", Header: "Paid", Format: listquery.Number(2)},
			{Key: "amountPending", Header: "Pending", Format: listquery.Number(2)},
			{Key: "paymentStatus", Header: "Status", Format: listquery.Capitalize},
		},
		DefaultPageSize: 5,
		ExportFilename:  "payment_history.csv",
	},
	{
		Name:     "payment-weekly",
		Title:    "Weekly Payment Summary",
		Resource: models.ResourcePaymentWeekly,
		Fields: []listquery.FieldSpec{
			{Key: "week", Kind: listquery.KindText, Searchable: true},
			{Key: "weekLabel", Kind: listquery.KindText, Searchable: true},
			{Key: "paymentStatus", Kind: listquery.KindEnum},
		},
		Columns: []listquery.Column{
			{Key: "weekLabel", Header: "Week"},
			{Key: "totalCoupons", Header: "Coupons"},
			{Key: "totalAmountUSD", Header: "Total (USD)", Format: listquery.Number(2)},
			{Key: "amountPaidUSD", Header: "Paid (USD)", Format: listquery.Number(2)},
			{Key: "amountPendingUSD", Header: "Pending (USD)", Format: listquery.Number(2)},
			{Key: "paymentStatus", Header: "Status", Format: listquery.Capitalize},
		},
		DefaultPageSize: 5,
		ExportFilename:  "payment_weekly.csv",
	},
	{
		Name:     "payment-monthly",
		Title:    "Monthly Payment Summary",
		Resource: models.ResourcePaymentMonthly,
		Fields: []listquery.FieldSpec{
			{Key: "monthName", Kind: listquery.KindText, Searchable: true},
			{Key: "month", Kind: listquery.KindText, Searchable: true},
			{Key: "paymentStatus", Kind: listquery.KindEnum},
		},
		Columns: []listquery.Column{
			{Key: "month", Header: "Month"},
			{Key: "totalCoupons", Header: "Coupons"},
			{Key: "totalAmountUSD", Header: "Total (USD)", Format: listquery.Number(2)},
			{Key: "amountPaidUSD", Header: "Paid (USD)", Format: listquery.Number(2)},
			{Key: "amountPendingUSD", Header: "Pending (USD)", Format: listquery.Number(2)},
			{Key: "paymentStatus", Header: "Status", Format: listquery.Capitalize},
		},
		DefaultPageSize: 5,
		ExportFilename:  "payment_monthly.csv",
	},
	{
		Name:     "notifications",
		Title:    "Notifications",
		Resource: models.ResourceNotifications,
		Fields: []listquery.FieldSpec{
			{Key: "title", Kind: listquery.KindText, Searchable: true},
			{Key: "message", Kind: listquery.KindText, Searchable: true},
			{Key: "type", Kind: listquery.KindEnum},
			{Key: "isRead", Kind: listquery.KindEnum},
			{Key: "createdAt", Kind: listquery.KindDate},
		},
		Columns: []listquery.Column{
			{Key: "title", Header: "Title"},
			{Key: "message", Header: "Message"},
			{Key: "type", Header: "Type", Format: listquery.Capitalize},
			{Key: "isRead", Header: "Read"},
			{Key: "createdAt", Header: "Received", Format: listquery.DateFormatter(dateTimeLayout)},
		},
		DefaultPageSize: 6,
		ExportFilename:  "notifications.csv",
	},
	{
		Name:     "surveys",
		Title:    "Surveys",
		Resource: models.ResourceSurveys,
		Fields: []listquery.FieldSpec{
			{Key: "title", Kind: listquery.KindText, Searchable: true},
			{Key: "createdAt", Kind: listquery.KindDate},
		},
		Columns: []listquery.Column{
			{Key: "title", Header: "Title"},
			{Key: "questions", Header: "Questions", Format: countItems},
			{Key: "createdAt", Header: "Created", Format: listquery.DateFormatter(dateLayout)},
		},
		DefaultPageSize: 10,
		ExportFilename:  "surveys.csv",
	},
}

// Lookup returns the view registered under name.
func Lookup(name string) (View, error) {
	for _, v := range registry {
		if v.Name == name {
			return v, nil
		}
	}
	return View{}, fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// All returns every registered view in display order.
func All() []View {
	out := make([]View, len(registry))
	copy(out, registry)
	return out
}

// HasField reports whether key is one of the view's field specs.
func (v View) HasField(key string) bool {
	for _, f := range v.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// ParseState builds a QueryState from URL query parameters. Missing or
// malformed numbers fall back to the view defaults.
func (v View) ParseState(q url.Values) listquery.QueryState {
	state := listquery.DefaultState()
	state.PageSize = v.DefaultPageSize
	state.SearchTerm = strings.TrimSpace(q.Get(ParamSearch))

	if page, err := strconv.Atoi(q.Get(ParamPage)); err == nil {
		state.Page = page
	}
	if size, err := strconv.Atoi(q.Get(ParamPageSize)); err == nil {
		state.PageSize = min(size, MaxPageSize)
	}

	for key, values := range q {
		field, ok := strings.CutPrefix(key, FilterPrefix)
		if !ok || field == "" || len(values) == 0 {
			continue
		}
		state.Filters[field] = values[0]
	}

	return state
}

func countItems(v any) string {
	items, ok := v.([]any)
	if !ok {
		return "0"
	}
	return strconv.Itoa(len(items))
}
