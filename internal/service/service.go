package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"vendor-dashboard-api/internal/cache"
	"vendor-dashboard-api/internal/database"
	"vendor-dashboard-api/internal/events"
	"vendor-dashboard-api/internal/features"
	"vendor-dashboard-api/internal/listquery"
	"vendor-dashboard-api/internal/metrics"
	"vendor-dashboard-api/internal/models"
	"vendor-dashboard-api/internal/session"
	"vendor-dashboard-api/internal/source"
	"vendor-dashboard-api/internal/tracing"
	"vendor-dashboard-api/internal/validation"
	"vendor-dashboard-api/internal/views"
)

// MaxImportBatch bounds the number of records accepted per import.
const MaxImportBatch = 1000

var (
	ErrNotFound          = errors.New("service: record not found")
	ErrUpstream          = errors.New("service: upstream unavailable")
	ErrFeatureDisabled   = errors.New("service: feature disabled")
	ErrImportUnsupported = errors.New("service: imports require the sqlite source")
	// ErrViewMisconfigured wraps engine configuration errors. They point at
	// a broken view definition, never at the caller's input.
	ErrViewMisconfigured = errors.New("service: view misconfigured")
)

// Backend is the data source of vendor records.
type Backend interface {
	Fetch(ctx context.Context, sess session.Session, resource string) ([]listquery.Record, error)
	SaveCoupon(ctx context.Context, sess session.Session, coupon models.Coupon) (models.Coupon, error)
	DeleteCoupon(ctx context.Context, sess session.Session, id string) error
	MarkNotificationRead(ctx context.Context, sess session.Session, id string) error
	MarkAllNotificationsRead(ctx context.Context, sess session.Session) error
	DeleteNotification(ctx context.Context, sess session.Session, id string) error
	DeleteSurvey(ctx context.Context, sess session.Session, id string) error
}

// Importer is implemented by backends that accept bulk record imports.
type Importer interface {
	ImportRecords(ctx context.Context, vendorID, resource string, records []listquery.Record) (int, error)
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Events   *events.Manager
	Features *features.Manager
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service provides the dashboard operations on top of a Backend.
type Service struct {
	backend  Backend
	cache    cache.Cache
	cacheTTL time.Duration
	events   *events.Manager
	features *features.Manager
	log      *slog.Logger
	now      func() time.Time

	// generations counts invalidations per cache key. A fetch that raced
	// an invalidation must not repopulate the cache.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewService creates a new service instance.
func NewService(backend Backend, opts Options) *Service {
	s := &Service{
		backend:  backend,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		events:   opts.Events,
		features: opts.Features,
		log:      opts.Logger,
		now:      opts.Now,

		generations: make(map[string]uint64),
	}

	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.features == nil {
		s.features = features.Defaults(nil)
	}
	if s.events == nil {
		s.events = events.NewManager(s.features.IsEnabled(features.FeatureEventHooks), s.log)
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = time.Minute
	}

	if s.cache != nil {
		s.events.SubscribeSync(events.EventRecordsChanged, s.invalidate)
	}
	s.events.Subscribe(events.EventRecordsChanged, s.auditRecordsChanged)
	s.events.Subscribe(events.EventExportGenerated, s.auditExport)

	return s
}

// Views returns every view definition.
func (s *Service) Views() []views.View {
	return views.All()
}

// List returns one page of a view for the session vendor.
func (s *Service) List(ctx context.Context, sess session.Session, viewName string, state listquery.QueryState) (resp models.ListResponse, err error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.List")
	defer func() { tracing.EndSpan(span, err, attribute.String("view", viewName)) }()

	view, err := views.Lookup(viewName)
	if err != nil {
		return models.ListResponse{}, err
	}

	records, err := s.records(ctx, sess, view.Resource)
	if err != nil {
		metrics.RecordQuery(view.Name, "error", 0)
		return models.ListResponse{}, err
	}

	result, err := listquery.Query(records, view.Fields, state)
	if err != nil {
		metrics.RecordQuery(view.Name, "error", 0)
		return models.ListResponse{}, fmt.Errorf("%w: %s: %w", ErrViewMisconfigured, view.Name, err)
	}
	metrics.RecordQuery(view.Name, "ok", result.TotalMatched)

	page, size := state.Paging()
	return models.ListResponse{
		View:         view.Name,
		Items:        result.Items,
		TotalMatched: result.TotalMatched,
		TotalPages:   result.TotalPages,
		Page:         page,
		PageSize:     size,
	}, nil
}

// Export renders every record matching state, ignoring pagination, as CSV.
func (s *Service) Export(ctx context.Context, sess session.Session, viewName string, state listquery.QueryState) (export models.Export, err error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.Export")
	defer func() { tracing.EndSpan(span, err, attribute.String("view", viewName)) }()

	if !s.features.IsEnabled(features.FeatureExports) {
		return models.Export{}, fmt.Errorf("%w: %s", ErrFeatureDisabled, features.FeatureExports)
	}

	view, err := views.Lookup(viewName)
	if err != nil {
		return models.Export{}, err
	}

	records, err := s.records(ctx, sess, view.Resource)
	if err != nil {
		return models.Export{}, err
	}

	matched, err := listquery.Match(records, view.Fields, state)
	if err != nil {
		return models.Export{}, fmt.Errorf("%w: %s: %w", ErrViewMisconfigured, view.Name, err)
	}

	rows, err := listquery.ExportProjection(matched, view.Columns)
	if err != nil {
		return models.Export{}, fmt.Errorf("%w: %s: %w", ErrViewMisconfigured, view.Name, err)
	}

	metrics.RecordExport(view.Name)
	if err := s.events.PublishExportGenerated(ctx, sess.VendorID, view.Name, len(matched)); err != nil {
		s.log.Warn("export event handlers failed", "view", view.Name, "error", err)
	}

	return models.Export{
		Filename: view.ExportFilename,
		Rows:     len(matched),
		Data:     listquery.EncodeCSV(rows),
	}, nil
}

// Facets returns the distinct values of a view field, for filter choices.
func (s *Service) Facets(ctx context.Context, sess session.Session, viewName, field string) (models.FacetsResponse, error) {
	view, err := views.Lookup(viewName)
	if err != nil {
		return models.FacetsResponse{}, err
	}

	if !view.HasField(field) {
		return models.FacetsResponse{}, &validation.ValidationError{
			Field:   "field",
			Message: fmt.Sprintf("%q is not a field of view %s", field, view.Name),
		}
	}

	records, err := s.records(ctx, sess, view.Resource)
	if err != nil {
		return models.FacetsResponse{}, err
	}

	return models.FacetsResponse{
		View:   view.Name,
		Field:  field,
		Values: listquery.DistinctValues(records, field),
	}, nil
}

// Summary returns the dashboard headline numbers. Coupons and
// notifications are fetched concurrently.
func (s *Service) Summary(ctx context.Context, sess session.Session) (summary models.DashboardSummary, err error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.Summary")
	defer func() { tracing.EndSpan(span, err) }()

	var coupons, notifications []listquery.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		coupons, err = s.records(gctx, sess, models.ResourceCoupons)
		return err
	})
	g.Go(func() error {
		var err error
		notifications, err = s.records(gctx, sess, models.ResourceNotifications)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.DashboardSummary{}, err
	}

	stats := models.NotificationStats{Total: len(notifications)}
	for _, n := range notifications {
		if read, _ := n["isRead"].(bool); !read {
			stats.Unread++
		}
	}

	byStatus := listquery.CountBy(coupons, "status")

	// Soft-deleted coupons stay listed and keep their status bucket, but
	// are not part of the vendor's live total.
	return models.DashboardSummary{
		VendorID:        sess.VendorID,
		TotalCoupons:    len(coupons) - byStatus[models.CouponStatusDeleted],
		CouponsByStatus: byStatus,
		Notifications:   stats,
	}, nil
}

// CreateCoupon validates and creates a coupon.
func (s *Service) CreateCoupon(ctx context.Context, sess session.Session, coupon models.Coupon) (models.Coupon, error) {
	coupon.ID = ""
	coupon = sanitizeCoupon(coupon)

	if err := validation.ValidateCoupon(coupon, s.now()); err != nil {
		return models.Coupon{}, err
	}

	created, err := s.backend.SaveCoupon(ctx, sess, coupon)
	if err != nil {
		return models.Coupon{}, s.backendError(err)
	}

	s.publishChanged(ctx, sess, models.ResourceCoupons, "create", created.ID)
	return created, nil
}

// UpdateCoupon validates and updates the editable fields of a coupon.
func (s *Service) UpdateCoupon(ctx context.Context, sess session.Session, id string, coupon models.Coupon) (models.Coupon, error) {
	if err := validation.ValidateID(id, "id"); err != nil {
		return models.Coupon{}, err
	}

	coupon.ID = id
	coupon = sanitizeCoupon(coupon)

	if err := validation.ValidateCoupon(coupon, s.now()); err != nil {
		return models.Coupon{}, err
	}

	updated, err := s.backend.SaveCoupon(ctx, sess, coupon)
	if err != nil {
		return models.Coupon{}, s.backendError(err)
	}

	s.publishChanged(ctx, sess, models.ResourceCoupons, "update", id)
	return updated, nil
}

// DeleteCoupon deletes a coupon.
func (s *Service) DeleteCoupon(ctx context.Context, sess session.Session, id string) error {
	if err := validation.ValidateID(id, "id"); err != nil {
		return err
	}

	if err := s.backend.DeleteCoupon(ctx, sess, id); err != nil {
		return s.backendError(err)
	}

	s.publishChanged(ctx, sess, models.ResourceCoupons, "delete", id)
	return nil
}

// MarkNotificationRead flags a notification as read.
func (s *Service) MarkNotificationRead(ctx context.Context, sess session.Session, id string) error {
	if err := validation.ValidateID(id, "id"); err != nil {
		return err
	}

	if err := s.backend.MarkNotificationRead(ctx, sess, id); err != nil {
		return s.backendError(err)
	}

	s.publishChanged(ctx, sess, models.ResourceNotifications, "read", id)
	return nil
}

// MarkAllNotificationsRead flags every notification as read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, sess session.Session) error {
	if err := s.backend.MarkAllNotificationsRead(ctx, sess); err != nil {
		return s.backendError(err)
	}

	s.publishChanged(ctx, sess, models.ResourceNotifications, "read-all")
	return nil
}

// DeleteNotification removes a notification.
func (s *Service) DeleteNotification(ctx context.Context, sess session.Session, id string) error {
	if err := validation.ValidateID(id, "id"); err != nil {
		return err
	}

	if err := s.backend.DeleteNotification(ctx, sess, id); err != nil {
		return s.backendError(err)
	}

	s.publishChanged(ctx, sess, models.ResourceNotifications, "delete", id)
	return nil
}

// DeleteSurvey removes a survey.
func (s *Service) DeleteSurvey(ctx context.Context, sess session.Session, id string) error {
	if err := validation.ValidateID(id, "id"); err != nil {
		return err
	}

	if err := s.backend.DeleteSurvey(ctx, sess, id); err != nil {
		return s.backendError(err)
	}

	s.publishChanged(ctx, sess, models.ResourceSurveys, "delete", id)
	return nil
}

// ImportRecords stores a batch of records for the session vendor. Only
// backends implementing Importer accept imports.
func (s *Service) ImportRecords(ctx context.Context, sess session.Session, resource string, records []listquery.Record) (int, error) {
	if !s.features.IsEnabled(features.FeatureImports) {
		return 0, fmt.Errorf("%w: %s", ErrFeatureDisabled, features.FeatureImports)
	}

	importer, ok := s.backend.(Importer)
	if !ok {
		return 0, ErrImportUnsupported
	}

	if !models.IsResource(resource) {
		return 0, &validation.ValidationError{
			Field:   "resource",
			Message: fmt.Sprintf("unknown resource %q", resource),
		}
	}

	if len(records) == 0 {
		return 0, &validation.ValidationError{
			Field:   "records",
			Message: "no records provided",
		}
	}

	if len(records) > MaxImportBatch {
		return 0, &validation.ValidationError{
			Field:   "records",
			Message: fmt.Sprintf("cannot import more than %d records per request", MaxImportBatch),
		}
	}

	for i, rec := range records {
		if rec == nil {
			return 0, &validation.ValidationError{
				Field:   fmt.Sprintf("records[%d]", i),
				Message: "must be an object",
			}
		}
	}

	inserted, err := importer.ImportRecords(ctx, sess.VendorID, resource, records)
	if err != nil {
		return 0, s.backendError(err)
	}

	s.publishChanged(ctx, sess, resource, "import")
	return inserted, nil
}

// records returns the full record set of resource, from the cache when
// possible. Cached sets are bound to the session token, so a caller only
// gets records it could have fetched itself.
func (s *Service) records(ctx context.Context, sess session.Session, resource string) ([]listquery.Record, error) {
	useCache := s.cache != nil && s.features.IsEnabled(features.FeatureRecordCache)
	key := cache.RecordsKey(sess.VendorID, resource)
	owner := cache.Owner(sess.Token)

	var gen uint64
	if useCache {
		records, err := cache.GetRecords(ctx, s.cache, key, owner)
		if err == nil {
			metrics.RecordCacheLookup(true)
			return records, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			s.log.Warn("record cache read failed", "key", key, "error", err)
		}
		metrics.RecordCacheLookup(false)
		gen = s.generation(key)
	}

	start := time.Now()
	records, err := s.backend.Fetch(ctx, sess, resource)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordFetch(resource, status, time.Since(start).Seconds())
	if err != nil {
		return nil, s.backendError(err)
	}

	if useCache {
		s.storeRecords(ctx, key, owner, gen, records)
	}

	return records, nil
}

func (s *Service) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[key]
}

// storeRecords caches records unless key was invalidated since gen was
// read. The lock is held across the write so an invalidation cannot slip
// in between the check and the Set.
func (s *Service) storeRecords(ctx context.Context, key, owner string, gen uint64, records []listquery.Record) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	if s.generations[key] != gen {
		s.log.Debug("skipping stale record cache write", "key", key)
		return
	}
	if err := cache.SetRecords(ctx, s.cache, key, owner, records, s.cacheTTL); err != nil {
		s.log.Warn("record cache write failed", "key", key, "error", err)
	}
}

// backendError maps data source failures onto service errors.
func (s *Service) backendError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var statusErr *source.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return err
}

func (s *Service) publishChanged(ctx context.Context, sess session.Session, resource, action string, ids ...string) {
	if err := s.events.PublishRecordsChanged(ctx, sess.VendorID, resource, action, ids...); err != nil {
		s.log.Error("records changed handlers failed",
			"vendor_id", sess.VendorID,
			"resource", resource,
			"action", action,
			"error", err,
		)
	}
}

func (s *Service) invalidate(ctx context.Context, event events.Event) error {
	data, ok := event.Data.(events.RecordsChangedData)
	if !ok {
		return nil
	}
	key := cache.RecordsKey(data.VendorID, data.Resource)

	s.genMu.Lock()
	s.generations[key]++
	s.genMu.Unlock()

	return s.cache.Delete(ctx, key)
}

func (s *Service) auditRecordsChanged(ctx context.Context, event events.Event) error {
	data, ok := event.Data.(events.RecordsChangedData)
	if !ok {
		return nil
	}
	s.log.Info("records changed",
		"vendor_id", data.VendorID,
		"resource", data.Resource,
		"action", data.Action,
		"ids", data.IDs,
	)
	return nil
}

func (s *Service) auditExport(ctx context.Context, event events.Event) error {
	data, ok := event.Data.(events.ExportGeneratedData)
	if !ok {
		return nil
	}
	s.log.Info("export generated", "vendor_id", data.VendorID, "view", data.View, "rows", data.Rows)
	return nil
}

func sanitizeCoupon(c models.Coupon) models.Coupon {
	c.Name = validation.SanitizeString(c.Name)
	c.Category = validation.SanitizeString(c.Category)
	c.CouponCode = validation.SanitizeString(c.CouponCode)
	c.CouponCodeType = validation.SanitizeString(c.CouponCodeType)
	c.CouponImage = validation.SanitizeString(c.CouponImage)
	return c
}
