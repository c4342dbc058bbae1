package features

import (
	"sort"
	"sync"
)

// Feature flag names.
const (
	// FeatureResponseCache caches provider quotes and the payment options report
	FeatureResponseCache = "response_cache"
	// FeatureSyntheticFallback answers with synthetic quotes when the live provider fails
	FeatureSyntheticFallback = "synthetic_fallback"
	// FeatureEventHooks publishes domain events to subscribers
	FeatureEventHooks = "event_hooks"
)

var defaultFlags = []FeatureFlag{
	{Name: FeatureResponseCache, Description: "cache provider quotes and payment options"},
	{Name: FeatureSyntheticFallback, Enabled: true, Description: "serve synthetic quotes when the live provider fails"},
	{Name: FeatureEventHooks, Description: "publish offer and search events"},
}

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

// NewManager creates a manager holding the known flags at their defaults,
// then switches on every name in enabled. Names it does not know are
// returned so the caller can report them.
func NewManager(enabled ...string) (*Manager, []string) {
	m := &Manager{flags: make(map[string]*FeatureFlag)}
	for _, f := range defaultFlags {
		m.Register(f.Name, f.Enabled, f.Description)
	}

	var unknown []string
	for _, name := range enabled {
		if !m.Enable(name) {
			unknown = append(unknown, name)
		}
	}
	return m, unknown
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

// IsEnabled checks if a feature flag is enabled. Unknown flags are off.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	return exists && flag.Enabled
}

// Gate returns a func reporting the flag's current state.
func (m *Manager) Gate(name string) func() bool {
	return func() bool { return m.IsEnabled(name) }
}

// Enable enables a feature flag and reports whether it exists.
func (m *Manager) Enable(name string) bool {
	return m.set(name, true)
}

// Disable disables a feature flag and reports whether it exists.
func (m *Manager) Disable(name string) bool {
	return m.set(name, false)
}

func (m *Manager) set(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, exists := m.flags[name]
	if exists {
		flag.Enabled = enabled
	}
	return exists
}

// All returns a copy of every flag, sorted by name.
func (m *Manager) All() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
