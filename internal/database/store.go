package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vendor-dashboard-api/internal/listquery"
	"vendor-dashboard-api/internal/models"
	"vendor-dashboard-api/internal/session"
	"vendor-dashboard-api/internal/validation"
)

// Fetch returns the full record set of a resource for the session vendor.
func (db *DB) Fetch(ctx context.Context, sess session.Session, resource string) ([]listquery.Record, error) {
	return db.ListRecords(ctx, sess.VendorID, resource)
}

// SaveCoupon creates a coupon when it has no id and otherwise updates the
// editable fields of the stored coupon. The usage cap is checked against
// the stored used count, which callers never submit.
func (db *DB) SaveCoupon(ctx context.Context, sess session.Session, coupon models.Coupon) (models.Coupon, error) {
	if coupon.ID == "" {
		return db.createCoupon(ctx, sess, coupon)
	}

	incoming, err := models.ToRecord(coupon)
	if err != nil {
		return models.Coupon{}, err
	}

	rec, err := db.UpdateRecord(ctx, sess.VendorID, models.ResourceCoupons, coupon.ID, func(rec listquery.Record) error {
		if err := validation.ValidateMaxUsage(coupon.MaxUsage, intField(rec, "usedCount")); err != nil {
			return err
		}
		for _, key := range models.CouponEditableFields {
			if v, ok := incoming[key]; ok {
				rec[key] = v
			}
		}
		return nil
	})
	if err != nil {
		return models.Coupon{}, err
	}

	var saved models.Coupon
	if err := models.FromRecord(rec, &saved); err != nil {
		return models.Coupon{}, err
	}
	return saved, nil
}

// intField reads a numeric record field, treating anything else as zero.
func intField(rec listquery.Record, key string) int {
	switch v := rec[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (db *DB) createCoupon(ctx context.Context, sess session.Session, coupon models.Coupon) (models.Coupon, error) {
	coupon.ID = uuid.New().String()
	coupon.VendorID = sess.VendorID
	coupon.Status = models.CouponStatusPending
	coupon.UsedCount = 0
	coupon.CreatedAt = time.Now().UTC()
	if coupon.CouponCodeType == "" {
		coupon.CouponCodeType = "%"
	}

	rec, err := models.ToRecord(coupon)
	if err != nil {
		return models.Coupon{}, err
	}

	if _, err := db.InsertRecord(ctx, sess.VendorID, models.ResourceCoupons, rec); err != nil {
		return models.Coupon{}, fmt.Errorf("failed to create coupon: %w", err)
	}

	return coupon, nil
}

// DeleteCoupon marks a coupon as deleted. Deleted coupons stay listed so
// the vendor can still see their history.
func (db *DB) DeleteCoupon(ctx context.Context, sess session.Session, id string) error {
	_, err := db.UpdateRecord(ctx, sess.VendorID, models.ResourceCoupons, id, func(rec listquery.Record) error {
		rec["status"] = models.CouponStatusDeleted
		return nil
	})
	return err
}

// MarkNotificationRead flags a single notification as read.
func (db *DB) MarkNotificationRead(ctx context.Context, sess session.Session, id string) error {
	_, err := db.UpdateRecord(ctx, sess.VendorID, models.ResourceNotifications, id, func(rec listquery.Record) error {
		rec["isRead"] = true
		return nil
	})
	return err
}

// MarkAllNotificationsRead flags every unread notification as read.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, sess session.Session) error {
	_, err := db.UpdateAll(ctx, sess.VendorID, models.ResourceNotifications, func(rec listquery.Record) bool {
		if read, _ := rec["isRead"].(bool); read {
			return false
		}
		rec["isRead"] = true
		return true
	})
	return err
}

// DeleteNotification removes a notification.
func (db *DB) DeleteNotification(ctx context.Context, sess session.Session, id string) error {
	return db.DeleteRecord(ctx, sess.VendorID, models.ResourceNotifications, id)
}

// DeleteSurvey removes a survey.
func (db *DB) DeleteSurvey(ctx context.Context, sess session.Session, id string) error {
	return db.DeleteRecord(ctx, sess.VendorID, models.ResourceSurveys, id)
}
