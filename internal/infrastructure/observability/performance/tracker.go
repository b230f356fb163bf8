package performance

import (
	"sync"
	"time"
)

// Tracker aggregates completed markers per operation and keeps a bounded
// window of the most recent ones.
type Tracker struct {
	mu            sync.RWMutex
	stats         map[string]*OperationStats
	recent        []Marker
	maxRecent     int
	slowThreshold time.Duration
	started       time.Time
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxRecent     int           `json:"maxRecent"`
	SlowThreshold time.Duration `json:"slowThreshold"`
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxRecent:     500,
		SlowThreshold: 500 * time.Millisecond,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{
		stats:         make(map[string]*OperationStats),
		maxRecent:     config.MaxRecent,
		slowThreshold: config.SlowThreshold,
		started:       time.Now(),
	}
}

// StartOperation creates a marker that reports back to the tracker on Complete.
func (t *Tracker) StartOperation(operation, scope string) *Marker {
	return &Marker{
		Operation: operation,
		Scope:     scope,
		StartTime: time.Now(),
		Success:   true,
		tracker:   t,
	}
}

func (t *Tracker) record(m *Marker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[m.Operation]
	if !ok {
		s = &OperationStats{}
		t.stats[m.Operation] = s
	}
	s.Count++
	s.TotalTime += m.Duration
	if !m.Success {
		s.Failures++
	}
	if m.Duration > t.slowThreshold {
		s.SlowCount++
	}
	if m.Duration > s.MaxDuration {
		s.MaxDuration = m.Duration
	}

	t.recent = append(t.recent, *m)
	if len(t.recent) > t.maxRecent {
		t.recent = t.recent[len(t.recent)-t.maxRecent:]
	}
}

// Stats returns a copy of the per-operation aggregates.
func (t *Tracker) Stats() map[string]OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]OperationStats, len(t.stats))
	for op, s := range t.stats {
		out[op] = *s
	}
	return out
}

// Recent returns completed markers newer than within.
func (t *Tracker) Recent(within time.Duration) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var out []Marker
	for _, m := range t.recent {
		if m.EndTime.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// Uptime returns how long the tracker has been running.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
