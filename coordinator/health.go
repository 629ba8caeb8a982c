package coordinator

import (
	"sync"
	"time"

	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/monitor"
)

// Health is the coordinator's overall health grade.
type Health int

const (
	Healthy Health = iota
	Warning
	Unhealthy
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "HEALTHY"
	case Warning:
		return "WARNING"
	case Unhealthy:
		return "UNHEALTHY"
	default:
		return "UNKNOWN"
	}
}

// healthTracker grades the system's health from the monitor's rolling
// report and the transaction manager's active-count pressure, publishing a
// transition event whenever the grade changes. Grounded on
// dan-strohschein-syndrdb-drivers/client/state.go's StateManager: a
// current-state field, a legal-transition table collapsed to "anything can
// move to anything" since health grading is a pure re-evaluation (not a
// sequential protocol), and registered change notification via the bus.
type healthTracker struct {
	cfg config.CoordinatorConfig
	bus *EventBus

	mu      sync.Mutex
	current Health
}

func newHealthTracker(cfg config.CoordinatorConfig, bus *EventBus) *healthTracker {
	return &healthTracker{cfg: cfg, bus: bus, current: Healthy}
}

// Evaluate grades current conditions and publishes EventHealthChanged if
// the grade moved.
func (h *healthTracker) Evaluate(report monitor.Report, activeTxnPercent float64) Health {
	grade := Healthy
	switch {
	case report.ErrorRate >= h.cfg.UnhealthyErrorRate:
		grade = Unhealthy
	case report.ErrorRate >= h.cfg.WarningErrorRate:
		grade = Warning
	}
	if activeTxnPercent >= h.cfg.WarningActiveTxnPercent && grade == Healthy {
		grade = Warning
	}

	h.mu.Lock()
	changed := grade != h.current
	prev := h.current
	h.current = grade
	h.mu.Unlock()

	if changed && h.bus != nil {
		h.bus.Publish(Event{Kind: EventHealthChanged, Payload: HealthTransition{From: prev, To: grade, At: time.Now()}})
	}
	return grade
}

// Current returns the last-graded health.
func (h *healthTracker) Current() Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// HealthTransition describes a health grade change, published on the
// event bus.
type HealthTransition struct {
	From Health
	To   Health
	At   time.Time
}
