package features

import (
	"sort"
	"sync"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a new feature flag manager.
func NewManager() *Manager {
	return &Manager{
		flags: make(map[string]*FeatureFlag),
	}
}

// Defaults registers the dashboard flags. Values in overrides win over the
// built-in defaults; unknown names in overrides are ignored.
func Defaults(overrides map[string]bool) *Manager {
	m := NewManager()
	m.Register(FeatureRecordCache, true, "Cache fetched record sets per vendor and resource")
	m.Register(FeatureExports, true, "Allow CSV exports of list views")
	m.Register(FeatureEventHooks, true, "Run asynchronous hooks for dashboard events")
	m.Register(FeatureImports, true, "Accept bulk record imports into the local store")

	for name, enabled := range overrides {
		if enabled {
			m.Enable(name)
		} else {
			m.Disable(name)
		}
	}
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return false
	}

	return flag.Enabled
}

// Enable enables a feature flag.
func (m *Manager) Enable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = true
	}
}

// Disable disables a feature flag.
func (m *Manager) Disable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = false
	}
}

// List returns copies of all flags sorted by name.
func (m *Manager) List() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Predefined feature flag names
const (
	// FeatureRecordCache enables the record set cache
	FeatureRecordCache = "record_cache"
	// FeatureExports enables CSV export endpoints
	FeatureExports = "exports"
	// FeatureEventHooks enables asynchronous event hooks
	FeatureEventHooks = "event_hooks"
	// FeatureImports enables the bulk import endpoint
	FeatureImports = "imports"
)
