package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// EventRecordsChanged is emitted after a vendor's records of one
	// resource were created, updated or deleted.
	EventRecordsChanged EventType = "records.changed"
	// EventExportGenerated is emitted after a CSV export was rendered.
	EventExportGenerated EventType = "export.generated"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// RecordsChangedData identifies the records touched by a mutation.
type RecordsChangedData struct {
	VendorID string
	Resource string
	Action   string
	IDs      []string
}

// ExportGeneratedData describes a rendered export.
type ExportGeneratedData struct {
	VendorID string
	View     string
	Rows     int
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager dispatches events. Sync handlers run inline and their errors are
// returned to the publisher; async handlers are fire-and-forget hooks and
// only run when hooks are enabled.
type Manager struct {
	mu           sync.RWMutex
	sync         map[EventType][]Handler
	async        map[EventType][]Handler
	hooksEnabled bool
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// NewManager creates a new event manager.
func NewManager(hooksEnabled bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sync:         make(map[EventType][]Handler),
		async:        make(map[EventType][]Handler),
		hooksEnabled: hooksEnabled,
		logger:       logger,
	}
}

// SubscribeSync registers a handler that runs before Publish returns.
func (m *Manager) SubscribeSync(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sync[eventType] = append(m.sync[eventType], handler)
}

// Subscribe registers an asynchronous hook.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.hooksEnabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.async[eventType] = append(m.async[eventType], handler)
}

// Publish publishes an event to all subscribed handlers and returns the
// joined errors of the sync handlers.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) error {
	m.mu.RLock()
	syncHandlers := m.sync[eventType]
	var asyncHandlers []Handler
	if m.hooksEnabled {
		asyncHandlers = m.async[eventType]
		// Counted under the lock so Shutdown cannot start waiting before
		// these hooks are registered.
		m.wg.Add(len(asyncHandlers))
	}
	m.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	var errs []error
	for _, handler := range syncHandlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	// Hooks outlive the request, so they must not inherit its cancellation.
	hookCtx := context.WithoutCancel(ctx)
	for _, handler := range asyncHandlers {
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(hookCtx, event); err != nil {
				m.logger.Warn("event hook failed", "event", string(eventType), "error", err)
			}
		}(handler)
	}

	return errors.Join(errs...)
}

// PublishRecordsChanged publishes a records changed event.
func (m *Manager) PublishRecordsChanged(ctx context.Context, vendorID, resource, action string, ids ...string) error {
	return m.Publish(ctx, EventRecordsChanged, RecordsChangedData{
		VendorID: vendorID,
		Resource: resource,
		Action:   action,
		IDs:      ids,
	})
}

// PublishExportGenerated publishes an export generated event.
func (m *Manager) PublishExportGenerated(ctx context.Context, vendorID, view string, rows int) error {
	return m.Publish(ctx, EventExportGenerated, ExportGeneratedData{
		VendorID: vendorID,
		View:     view,
		Rows:     rows,
	})
}

// Shutdown stops dispatching hooks and waits for running ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.hooksEnabled = false
	m.async = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}
