package models

import (
	"time"

	"vendor-dashboard-api/internal/listquery"
)

// Coupon statuses as used by the coupon platform.
const (
	CouponStatusApproved = "approved"
	CouponStatusPending  = "pending"
	CouponStatusRejected = "rejected"
	CouponStatusExpired  = "expired"
	CouponStatusUsed     = "used"
	CouponStatusDeleted  = "deleted"
)

// Coupon represents a vendor coupon. JSON names follow the platform API.
type Coupon struct {
	ID                 string    `json:"_id"`
	VendorID           string    `json:"vendorId"`
	Name               string    `json:"name" validate:"required,max=200"`
	Category           string    `json:"category" validate:"required,max=100"`
	CouponCode         string    `json:"couponCode" validate:"omitempty,max=64"`
	CouponCodeType     string    `json:"couponCodeType" validate:"omitempty,oneof=% flat"`
	DiscountPercentage float64   `json:"discountPercentage" validate:"gt=0,lte=100"`
	RequiredCoins      int       `json:"requiredCoins" validate:"gte=0"`
	LimitForSameUser   int       `json:"limitForSameUser" validate:"gte=0"`
	MaxUsage           int       `json:"maxUsage" validate:"gte=0"`
	UsedCount          int       `json:"usedCount"`
	ValidityDate       time.Time `json:"validityDate"`
	Status             string    `json:"status"`
	CouponImage        string    `json:"couponImage,omitempty" validate:"omitempty,url"`
	CreatedAt          time.Time `json:"createdAt"`
}

// CouponEditableFields are the coupon fields a vendor may change after
// creation. Status, usage counters and timestamps are owned by the platform.
var CouponEditableFields = []string{
	"name",
	"category",
	"discountPercentage",
	"requiredCoins",
	"limitForSameUser",
	"maxUsage",
	"validityDate",
	"couponCodeType",
	"couponImage",
}

// Notification represents a vendor notification.
type Notification struct {
	ID        string    `json:"_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListResponse is the payload returned for one page of a view.
type ListResponse struct {
	View         string             `json:"view"`
	Items        []listquery.Record `json:"items"`
	TotalMatched int                `json:"total_matched"`
	TotalPages   int                `json:"total_pages"`
	Page         int                `json:"page"`
	PageSize     int                `json:"page_size"`
}

// Export is a rendered CSV export ready to be written to a client.
type Export struct {
	Filename string
	Rows     int
	Data     []byte
}

// FacetsResponse lists the filter choices of a field.
type FacetsResponse struct {
	View   string   `json:"view"`
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// NotificationStats mirrors the counters shown on the notifications page.
type NotificationStats struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// DashboardSummary is the vendor dashboard headline data.
type DashboardSummary struct {
	VendorID        string            `json:"vendor_id"`
	TotalCoupons    int               `json:"total_coupons"`
	CouponsByStatus map[string]int    `json:"coupons_by_status"`
	Notifications   NotificationStats `json:"notifications"`
}

// ImportRecordsRequest is the request body for seeding records.
type ImportRecordsRequest struct {
	Records []listquery.Record `json:"records"`
}

// ImportRecordsResponse reports how many records were stored.
type ImportRecordsResponse struct {
	Inserted int `json:"inserted"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
