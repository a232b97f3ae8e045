package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendor-dashboard-api/internal/models"
)

var now = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func validCoupon() models.Coupon {
	return models.Coupon{
		Name:               "Blue Deal",
		Category:           "Food",
		CouponCodeType:     "%",
		DiscountPercentage: 15,
		RequiredCoins:      10,
		LimitForSameUser:   1,
		MaxUsage:           100,
		ValidityDate:       now.AddDate(0, 1, 0),
	}
}

func TestValidateCoupon_Valid(t *testing.T) {
	assert.NoError(t, ValidateCoupon(validCoupon(), now))
}

func TestValidateCoupon_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *models.Coupon)
		field  string
	}{
		{name: "missing name", mutate: func(c *models.Coupon) { c.Name = "" }, field: "name"},
		{name: "missing category", mutate: func(c *models.Coupon) { c.Category = "" }, field: "category"},
		{name: "zero discount", mutate: func(c *models.Coupon) { c.DiscountPercentage = 0 }, field: "discountPercentage"},
		{name: "discount over 100", mutate: func(c *models.Coupon) { c.DiscountPercentage = 120 }, field: "discountPercentage"},
		{name: "negative coins", mutate: func(c *models.Coupon) { c.RequiredCoins = -1 }, field: "requiredCoins"},
		{name: "bad code type", mutate: func(c *models.Coupon) { c.CouponCodeType = "bogo" }, field: "couponCodeType"},
		{name: "bad image url", mutate: func(c *models.Coupon) { c.CouponImage = "not a url" }, field: "couponImage"},
		{name: "missing validity", mutate: func(c *models.Coupon) { c.ValidityDate = time.Time{} }, field: "validityDate"},
		{name: "validity too far", mutate: func(c *models.Coupon) { c.ValidityDate = now.AddDate(3, 0, 0) }, field: "validityDate"},
		{name: "usage below used count", mutate: func(c *models.Coupon) { c.UsedCount = 150 }, field: "maxUsage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon()
			tt.mutate(&c)

			err := ValidateCoupon(c, now)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(uuid.New().String(), "id"))
	assert.NoError(t, ValidateID("65a1f0c2e4b0a1b2c3d4e5f6", "id"))

	var verr *ValidationError
	require.ErrorAs(t, ValidateID("", "id"), &verr)
	assert.Equal(t, "is required", verr.Message)

	assert.Error(t, ValidateID("../etc/passwd", "id"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hel\x00lo\x07 "))
	assert.Equal(t, "a\tb", SanitizeString("a\tb"))
}
