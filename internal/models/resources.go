package models

import "slices"

// Resource names identify a record collection in a data source.
const (
	ResourceCoupons        = "coupons"
	ResourceNotifications  = "notifications"
	ResourcePaymentHistory = "payment-history"
	ResourcePaymentWeekly  = "payment-weekly"
	ResourcePaymentMonthly = "payment-monthly"
	ResourceSurveys        = "surveys"
)

// Resources lists every known resource.
var Resources = []string{
	ResourceCoupons,
	ResourceNotifications,
	ResourcePaymentHistory,
	ResourcePaymentWeekly,
	ResourcePaymentMonthly,
	ResourceSurveys,
}

// IsResource reports whether name is a known resource.
func IsResource(name string) bool {
	return slices.Contains(Resources, name)
}
