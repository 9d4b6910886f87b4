// Package health tracks the health of the dependencies behind the caches
// from the outcomes of the calls made to them.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/scttfrdmn/productcache/pkg/errors"
)

// Component names tracked by the service
const (
	ComponentStore = "store"
)

// State represents the health state of a component
type State int

const (
	// StateHealthy indicates the component is fully operational
	StateHealthy State = iota

	// StateDegraded indicates recent calls have been failing
	StateDegraded

	// StateReadOnly indicates writes are failing while reads may still work
	StateReadOnly

	// StateUnavailable indicates the component is not operational
	StateUnavailable
)

// String returns the string representation of a health state
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateReadOnly:
		return "read-only"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ComponentHealth is a snapshot of one component
type ComponentHealth struct {
	Name              string    `json:"name"`
	State             State     `json:"state"`
	LastStateChange   time.Time `json:"last_state_change"`
	LastCheck         time.Time `json:"last_check"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastErrorMessage  string    `json:"last_error_message,omitempty"`
}

// Config configures health tracking
type Config struct {
	// ErrorThreshold is the number of consecutive errors before marking a component degraded
	ErrorThreshold int `yaml:"error_threshold"`

	// UnavailableThreshold is the number of consecutive errors before marking unavailable
	UnavailableThreshold int `yaml:"unavailable_threshold"`

	// CheckInterval is the interval between background probes
	CheckInterval time.Duration `yaml:"check_interval"`
}

// DefaultConfig returns a default tracker configuration
func DefaultConfig() Config {
	return Config{
		ErrorThreshold:       3,
		UnavailableThreshold: 10,
		CheckInterval:        30 * time.Second,
	}
}

// Tracker tracks component health and derives the overall state from the worst component
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	config     Config
	now        func() time.Time
}

// NewTracker creates a new health tracker
func NewTracker(config Config) *Tracker {
	return &Tracker{
		components: make(map[string]*ComponentHealth),
		config:     config,
		now:        time.Now,
	}
}

// RegisterComponent starts tracking a component in the healthy state
func (t *Tracker) RegisterComponent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.components[name]; !exists {
		now := t.now()
		t.components[name] = &ComponentHealth{
			Name:            name,
			State:           StateHealthy,
			LastStateChange: now,
			LastCheck:       now,
		}
	}
}

// Record records the outcome of a call to component. Unregistered components are ignored.
func (t *Tracker) Record(component string, err error) {
	if err != nil {
		t.RecordError(component, err)
		return
	}
	t.RecordSuccess(component)
}

// RecordSuccess records a successful call. Each success cancels one earlier
// error and the component recovers once none remain.
func (t *Tracker) RecordSuccess(component string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.components[component]
	if !exists {
		return
	}

	h.LastCheck = t.now()
	if h.ConsecutiveErrors > 0 {
		h.ConsecutiveErrors--
		if h.ConsecutiveErrors == 0 && h.State != StateHealthy {
			t.transition(h, StateHealthy)
		}
	}
}

// RecordError records a failed call
func (t *Tracker) RecordError(component string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.components[component]
	if !exists {
		return
	}

	h.LastCheck = t.now()
	h.ConsecutiveErrors++
	if err != nil {
		h.LastErrorMessage = err.Error()
	}

	newState := h.State
	switch {
	case h.ConsecutiveErrors >= t.config.UnavailableThreshold:
		newState = StateUnavailable
	case h.ConsecutiveErrors >= t.config.ErrorThreshold:
		if errors.HasCode(err, errors.ErrCodeStoreWrite) {
			newState = StateReadOnly
		} else {
			newState = StateDegraded
		}
	}
	if newState != h.State {
		t.transition(h, newState)
	}
}

// GetState returns the state of a component; unknown components are unavailable
func (t *Tracker) GetState(component string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if h, exists := t.components[component]; exists {
		return h.State
	}
	return StateUnavailable
}

// GetAllComponents returns a snapshot of every registered component
func (t *Tracker) GetAllComponents() map[string]ComponentHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ComponentHealth, len(t.components))
	for name, h := range t.components {
		result[name] = *h
	}
	return result
}

// GetOverallHealth returns the worst state across all components
func (t *Tracker) GetOverallHealth() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	overall := StateHealthy
	for _, h := range t.components {
		if h.State > overall {
			overall = h.State
		}
	}
	return overall
}

// StartHealthChecks probes every registered component on each tick until ctx is done.
func (t *Tracker) StartHealthChecks(ctx context.Context, checkFn func(ctx context.Context, component string) error) {
	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.performHealthChecks(ctx, checkFn)
		}
	}
}

// Helper methods

func (t *Tracker) performHealthChecks(ctx context.Context, checkFn func(ctx context.Context, component string) error) {
	t.mu.RLock()
	components := make([]string, 0, len(t.components))
	for name := range t.components {
		components = append(components, name)
	}
	t.mu.RUnlock()

	for _, component := range components {
		t.Record(component, checkFn(ctx, component))
	}
}

// transition moves h to state. Must hold t.mu.
func (t *Tracker) transition(h *ComponentHealth, state State) {
	h.State = state
	h.LastStateChange = t.now()
	if state == StateHealthy {
		h.ConsecutiveErrors = 0
		h.LastErrorMessage = ""
	}
}
