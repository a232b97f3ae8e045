package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"vendor-dashboard-api/internal/models"
)

var (
	idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	validate = newValidator()
)

// MaxValidityPeriod bounds how far in the future a coupon may stay valid.
const MaxValidityPeriod = 2 * 365 * 24 * time.Hour

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCoupon checks a coupon submitted for creation or update against
// now.
func ValidateCoupon(coupon models.Coupon, now time.Time) error {
	if err := validate.Struct(coupon); err != nil {
		return fromValidatorError(err)
	}

	if coupon.ValidityDate.IsZero() {
		return &ValidationError{
			Field:   "validityDate",
			Message: "is required",
		}
	}

	if coupon.ValidityDate.Sub(now) > MaxValidityPeriod {
		return &ValidationError{
			Field:   "validityDate",
			Message: "cannot be more than 2 years in the future",
		}
	}

	return ValidateMaxUsage(coupon.MaxUsage, coupon.UsedCount)
}

// ValidateMaxUsage rejects a usage cap below the number of redemptions
// already made. A zero cap means unlimited.
func ValidateMaxUsage(maxUsage, usedCount int) error {
	if maxUsage > 0 && usedCount > maxUsage {
		return &ValidationError{
			Field:   "maxUsage",
			Message: "cannot be lower than the used count",
		}
	}
	return nil
}

// fromValidatorError reports the first failed rule as a ValidationError.
func fromValidatorError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	return &ValidationError{
		Field:   fe.Field(),
		Message: ruleMessage(fe),
	}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	}
	return "is invalid"
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateID checks a record identifier. Identifiers come from the
// platform (hex object ids) or from this service (UUIDs).
func ValidateID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	if !idRegex.MatchString(SanitizeString(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must contain only letters, digits, '-' or '_' (max 64)",
		}
	}

	return nil
}
