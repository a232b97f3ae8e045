// Package source is the HTTP client for the vendor REST API. It fetches
// whole record sets per resource and forwards coupon, notification and
// survey mutations.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"vendor-dashboard-api/internal/listquery"
	"vendor-dashboard-api/internal/models"
	"vendor-dashboard-api/internal/session"
)

const (
	// maxResponseSize caps how much of an upstream body is read.
	maxResponseSize = 32 << 20
	// maxPages bounds how many pages of a paged resource are followed.
	maxPages = 100
)

var ErrUnknownResource = errors.New("source: unknown resource")

// StatusError is returned when the upstream API answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// endpoint describes where a resource lives and which envelope key holds
// its records.
type endpoint struct {
	path     func(vendorID string, page, limit int) string
	envelope string
	payments bool
	// totalPages is the response path of the upstream page count. Paged
	// resources are followed page by page.
	totalPages string
	// emptyOnNotFound treats 404 as "no records yet".
	emptyOnNotFound bool
}

var endpoints = map[string]endpoint{
	models.ResourceCoupons: {
		path:     func(id string, _, _ int) string { return "/vendor/" + url.PathEscape(id) + "/coupons" },
		envelope: "coupons",
	},
	models.ResourcePaymentHistory: {
		path:     func(id string, _, _ int) string { return "/vendor/" + url.PathEscape(id) + "/payments/history" },
		envelope: "monthlyHistory",
		payments: true,
	},
	models.ResourcePaymentWeekly: {
		path:     func(id string, _, _ int) string { return "/vendor/" + url.PathEscape(id) + "/payments/weekly-summary" },
		envelope: "weeks",
		payments: true,
	},
	models.ResourcePaymentMonthly: {
		path:     func(id string, _, _ int) string { return "/vendor/" + url.PathEscape(id) + "/payments/monthly-summary" },
		envelope: "monthlySummaries",
		payments: true,
	},
	models.ResourceNotifications: {
		path: func(id string, page, limit int) string {
			return "/vendor/notifications/" + url.PathEscape(id) + "?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
		},
		envelope:   "data.notifications",
		totalPages: "data.pagination.totalPages",
	},
	models.ResourceSurveys: {
		path:            func(id string, _, _ int) string { return "/vendor/get-surveys/" + url.PathEscape(id) },
		envelope:        "data",
		emptyOnNotFound: true,
	},
}

// Envelope returns the response key that holds the records of resource.
func Envelope(resource string) (string, bool) {
	ep, ok := endpoints[resource]
	return ep.envelope, ok
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	PaymentsBaseURL   string
	Timeout           time.Duration
	NotificationLimit int
}

// Client talks to the vendor REST API on behalf of a session.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	paymentsBaseURL   string
	notificationLimit int
	log               *slog.Logger
}

// New creates a new API client.
func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.NotificationLimit <= 0 {
		cfg.NotificationLimit = 100
	}
	if cfg.PaymentsBaseURL == "" {
		cfg.PaymentsBaseURL = cfg.BaseURL
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		httpClient:        &http.Client{Timeout: cfg.Timeout},
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		paymentsBaseURL:   strings.TrimRight(cfg.PaymentsBaseURL, "/"),
		notificationLimit: cfg.NotificationLimit,
		log:               log,
	}
}

// Fetch loads the full record set of resource for the session vendor.
func (c *Client) Fetch(ctx context.Context, sess session.Session, resource string) ([]listquery.Record, error) {
	ep, ok := endpoints[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	base := c.baseURL
	if ep.payments {
		base = c.paymentsBaseURL
	}

	records := []listquery.Record{}
	for page := 1; ; page++ {
		body, err := c.do(ctx, sess, http.MethodGet, base+ep.path(sess.VendorID, page, c.notificationLimit), nil)
		if err != nil {
			var se *StatusError
			if ep.emptyOnNotFound && errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
				c.log.Debug("upstream has no records", "resource", resource, "vendor_id", sess.VendorID)
				return []listquery.Record{}, nil
			}
			return nil, err
		}

		batch, err := ParseRecords(bytes.NewReader(body), ep.envelope)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", resource, err)
		}
		records = append(records, batch...)

		if ep.totalPages == "" || len(batch) == 0 {
			break
		}
		total := pageCount(body, ep.totalPages)
		if page >= total {
			break
		}
		if page == maxPages {
			c.log.Warn("upstream record set truncated",
				"resource", resource,
				"vendor_id", sess.VendorID,
				"pages", total,
				"fetched", len(records),
			)
			break
		}
	}
	return records, nil
}

// pageCount reads the upstream page count at path, defaulting to one page.
func pageCount(body []byte, path string) int {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return 1
	}
	v, ok := listquery.Lookup(doc, path)
	if !ok {
		return 1
	}
	n, ok := v.(json.Number)
	if !ok {
		return 1
	}
	total, err := n.Int64()
	if err != nil || total < 1 {
		return 1
	}
	return int(total)
}

// SaveCoupon creates the coupon when it has no id and otherwise updates it.
func (c *Client) SaveCoupon(ctx context.Context, sess session.Session, coupon models.Coupon) (models.Coupon, error) {
	var (
		method  = http.MethodPut
		reqURL  = c.baseURL + "/vendor/update-coupon/" + url.PathEscape(coupon.ID)
		payload any
	)

	if coupon.ID == "" {
		method = http.MethodPost
		reqURL = c.baseURL + "/vendor/create-coupon/" + url.PathEscape(sess.VendorID)
		payload = coupon
	} else {
		full, err := models.ToRecord(coupon)
		if err != nil {
			return models.Coupon{}, err
		}
		editable := listquery.Record{}
		for _, key := range models.CouponEditableFields {
			if v, ok := full[key]; ok {
				editable[key] = v
			}
		}
		payload = editable
	}

	body, err := c.do(ctx, sess, method, reqURL, payload)
	if err != nil {
		return models.Coupon{}, err
	}

	var resp struct {
		Coupon *models.Coupon `json:"coupon"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return models.Coupon{}, fmt.Errorf("decode coupon response: %w", err)
		}
	}
	if resp.Coupon != nil {
		return *resp.Coupon, nil
	}

	// The API only acknowledged the write.
	if coupon.ID == "" {
		coupon.VendorID = sess.VendorID
		coupon.Status = models.CouponStatusPending
	}
	return coupon, nil
}

// DeleteCoupon deletes a coupon upstream.
func (c *Client) DeleteCoupon(ctx context.Context, sess session.Session, id string) error {
	_, err := c.do(ctx, sess, http.MethodDelete, c.baseURL+"/vendor/coupon/"+url.PathEscape(id), nil)
	return err
}

// MarkNotificationRead flags a single notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, sess session.Session, id string) error {
	reqURL := c.baseURL + "/vendor/" + url.PathEscape(sess.VendorID) + "/notifications/" + url.PathEscape(id) + "/read"
	_, err := c.do(ctx, sess, http.MethodPut, reqURL, nil)
	return err
}

// MarkAllNotificationsRead flags every notification of the vendor as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, sess session.Session) error {
	reqURL := c.baseURL + "/vendor/" + url.PathEscape(sess.VendorID) + "/notifications/mark-all-read"
	_, err := c.do(ctx, sess, http.MethodPut, reqURL, nil)
	return err
}

// DeleteNotification deletes a notification upstream.
func (c *Client) DeleteNotification(ctx context.Context, sess session.Session, id string) error {
	reqURL := c.baseURL + "/vendor/" + url.PathEscape(sess.VendorID) + "/notifications/" + url.PathEscape(id)
	_, err := c.do(ctx, sess, http.MethodDelete, reqURL, nil)
	return err
}

// DeleteSurvey deletes a survey upstream.
func (c *Client) DeleteSurvey(ctx context.Context, sess session.Session, id string) error {
	reqURL := c.baseURL + "/vendor/" + url.PathEscape(sess.VendorID) + "/survey/" + url.PathEscape(id)
	_, err := c.do(ctx, sess, http.MethodDelete, reqURL, nil)
	return err
}

func (c *Client) do(ctx context.Context, sess session.Session, method, reqURL string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("upstream request failed", "method", method, "url", reqURL, "error", err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("upstream request",
		"method", method,
		"url", reqURL,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body),
		}
	}

	return body, nil
}

// upstreamMessage extracts the "message" field the API puts on errors.
func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		return payload.Message
	}
	return ""
}

// ParseRecords decodes a record set. The input may be a bare JSON array or
// an object holding the array at the dotted envelope path. A missing or
// null envelope value yields an empty set.
func ParseRecords(r io.Reader, envelope string) ([]listquery.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	items, ok := doc.([]any)
	if !ok {
		obj, isObj := doc.(map[string]any)
		if !isObj {
			return nil, fmt.Errorf("expected array or object, got %T", doc)
		}
		v, found := listquery.Lookup(obj, envelope)
		if !found || v == nil {
			return []listquery.Record{}, nil
		}
		if items, ok = v.([]any); !ok {
			return nil, fmt.Errorf("envelope %q is %T, not an array", envelope, v)
		}
	}

	records := make([]listquery.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, item)
		}
		records = append(records, listquery.Record(obj))
	}
	return records, nil
}
