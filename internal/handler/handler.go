package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vendor-dashboard-api/internal/middleware"
	"vendor-dashboard-api/internal/models"
	"vendor-dashboard-api/internal/service"
	"vendor-dashboard-api/internal/session"
	"vendor-dashboard-api/internal/validation"
	"vendor-dashboard-api/internal/views"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	log         *slog.Logger
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Logger      *slog.Logger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
		log:         opts.Logger,
	}
}

// RegisterRoutes mounts the vendor API under /api. Every route requires a
// vendor session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireSession)

		r.Get("/views", h.ListViews)
		r.Route("/views/{view}", func(r chi.Router) {
			r.Get("/records", h.ListRecords)
			r.Get("/export", h.ExportRecords)
			r.Get("/facets/{field}", h.GetFacets)
		})

		r.Get("/dashboard/summary", h.GetSummary)

		r.Post("/coupons", h.CreateCoupon)
		r.Put("/coupons/{id}", h.UpdateCoupon)
		r.Delete("/coupons/{id}", h.DeleteCoupon)

		r.Put("/notifications/read-all", h.MarkAllNotificationsRead)
		r.Put("/notifications/{id}/read", h.MarkNotificationRead)
		r.Delete("/notifications/{id}", h.DeleteNotification)

		r.Delete("/surveys/{id}", h.DeleteSurvey)

		r.Post("/imports/{resource}", h.ImportRecords)
	})
}

// ListViews handles GET /api/views
func (h *Handler) ListViews(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]views.View{"views": h.service.Views()})
}

// ListRecords handles GET /api/views/{view}/records
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	view, err := views.Lookup(chi.URLParam(r, "view"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp, err := h.service.List(r.Context(), sess, view.Name, view.ParseState(r.URL.Query()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ExportRecords handles GET /api/views/{view}/export
func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	view, err := views.Lookup(chi.URLParam(r, "view"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	export, err := h.service.Export(r.Context(), sess, view.Name, view.ParseState(r.URL.Query()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("X-Total-Count", strconv.Itoa(export.Rows))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Data)
}

// GetFacets handles GET /api/views/{view}/facets/{field}
func (h *Handler) GetFacets(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	field := validation.SanitizeString(chi.URLParam(r, "field"))
	facets, err := h.service.Facets(r.Context(), sess, chi.URLParam(r, "view"), field)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, facets)
}

// GetSummary handles GET /api/dashboard/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	summary, err := h.service.Summary(r.Context(), sess)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

// CreateCoupon handles POST /api/coupons
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	coupon, ok := h.decodeCoupon(w, r)
	if !ok {
		return
	}

	created, err := h.service.CreateCoupon(r.Context(), sess, coupon)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// UpdateCoupon handles PUT /api/coupons/{id}
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	coupon, ok := h.decodeCoupon(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateCoupon(r.Context(), sess, id, coupon)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteCoupon handles DELETE /api/coupons/{id}
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCoupon(r.Context(), sess, id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkNotificationRead handles PUT /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), sess, id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead handles PUT /api/notifications/read-all
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	if err := h.service.MarkAllNotificationsRead(r.Context(), sess); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification handles DELETE /api/notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteNotification(r.Context(), sess, id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteSurvey handles DELETE /api/surveys/{id}
func (h *Handler) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSurvey(r.Context(), sess, id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ImportRecords handles POST /api/imports/{resource}
func (h *Handler) ImportRecords(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	var req models.ImportRecordsRequest
	if !h.decodeJSON(w, r, &req, true) {
		return
	}

	inserted, err := h.service.ImportRecords(r.Context(), sess, chi.URLParam(r, "resource"), req.Records)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, models.ImportRecordsResponse{Inserted: inserted})
}

// couponRequest is the coupon body accepted from clients. validityDate may
// be a calendar date, as sent by date pickers, or an RFC 3339 timestamp.
type couponRequest struct {
	Name               string  `json:"name"`
	Category           string  `json:"category"`
	CouponCode         string  `json:"couponCode"`
	CouponCodeType     string  `json:"couponCodeType"`
	DiscountPercentage float64 `json:"discountPercentage"`
	RequiredCoins      int     `json:"requiredCoins"`
	LimitForSameUser   int     `json:"limitForSameUser"`
	MaxUsage           int     `json:"maxUsage"`
	ValidityDate       string  `json:"validityDate"`
	CouponImage        string  `json:"couponImage"`
}

func (h *Handler) decodeCoupon(w http.ResponseWriter, r *http.Request) (models.Coupon, bool) {
	var req couponRequest
	if !h.decodeJSON(w, r, &req, false) {
		return models.Coupon{}, false
	}

	coupon := models.Coupon{
		Name:               req.Name,
		Category:           req.Category,
		CouponCode:         req.CouponCode,
		CouponCodeType:     req.CouponCodeType,
		DiscountPercentage: req.DiscountPercentage,
		RequiredCoins:      req.RequiredCoins,
		LimitForSameUser:   req.LimitForSameUser,
		MaxUsage:           req.MaxUsage,
		CouponImage:        req.CouponImage,
	}

	if req.ValidityDate != "" {
		validity, err := parseDate(validation.SanitizeString(req.ValidityDate))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "validityDate must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
			return models.Coupon{}, false
		}
		coupon.ValidityDate = validity
	}

	return coupon, true
}

// pathID returns the {id} URL parameter, rejecting malformed ids.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateID(id, "id"); err != nil {
		h.handleError(w, r, err)
		return "", false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// decodeJSON decodes the request body into dst and writes the error
// response itself when decoding fails.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, useNumber bool) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if len(bytes.TrimSpace(body)) == 0 {
		h.respondError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}

	return true
}

// handleError maps service errors onto HTTP responses.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.ValidationError

	switch {
	case errors.As(err, &ve):
		h.respondError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, views.ErrUnknownView):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, service.ErrFeatureDisabled):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrImportUnsupported):
		h.respondError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, service.ErrUpstream):
		h.log.Warn("upstream failure", "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		// Includes engine configuration errors: a broken view is our fault.
		h.log.Error("request failed", "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
