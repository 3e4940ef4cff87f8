package resilience

import (
	"math"
	"sort"
	"sync"
	"time"
)

// MetricsConfig configures a metrics collector.
type MetricsConfig struct {
	// Name identifies this collector for registries and logging.
	Name string
	// Window is how long recorded calls stay visible in snapshots.
	Window time.Duration
}

// DefaultMetricsConfig returns a one-minute window.
func DefaultMetricsConfig(name string) MetricsConfig {
	return MetricsConfig{Name: name, Window: time.Minute}
}

// Snapshot is a point-in-time summary of the calls currently in the window.
type Snapshot struct {
	TotalCalls   int     `json:"total_calls"`
	SuccessCalls int     `json:"success_calls"`
	FailureCalls int     `json:"failure_calls"`
	FailureRate  float64 `json:"failure_rate"`

	AverageResponseTime time.Duration `json:"average_response_time"`
	P50                 time.Duration `json:"p50"`
	P95                 time.Duration `json:"p95"`
	P99                 time.Duration `json:"p99"`
	Min                 time.Duration `json:"min"`
	Max                 time.Duration `json:"max"`

	LastCallTime time.Time `json:"last_call_time"`
}

type metricsEntry struct {
	at       time.Time
	duration time.Duration
	success  bool
	label    string
}

// MetricsCollector records (duration, outcome) pairs over a rolling time
// window and computes percentile statistics over them. It is safe for
// concurrent use.
type MetricsCollector struct {
	config MetricsConfig

	mu      sync.Mutex
	entries []metricsEntry
}

// NewMetricsCollector creates a collector.
func NewMetricsCollector(config MetricsConfig) *MetricsCollector {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &MetricsCollector{config: config}
}

// Name returns the collector's configured name.
func (m *MetricsCollector) Name() string { return m.config.Name }

// RecordSuccess records a successful call.
func (m *MetricsCollector) RecordSuccess(duration time.Duration) {
	m.record(duration, true, "")
}

// RecordFailure records a failed call with an optional error label.
func (m *MetricsCollector) RecordFailure(duration time.Duration, label string) {
	m.record(duration, false, label)
}

func (m *MetricsCollector) record(duration time.Duration, success bool, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.evict(now)
	m.entries = append(m.entries, metricsEntry{at: now, duration: duration, success: success, label: label})
}

// Snapshot returns the statistics for calls inside the window. An empty
// window yields an all-zero snapshot, never an error.
func (m *MetricsCollector) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evict(time.Now())

	var snap Snapshot
	n := len(m.entries)
	if n == 0 {
		return snap
	}

	durations := make([]time.Duration, n)
	var total time.Duration
	snap.Min = m.entries[0].duration
	for i, e := range m.entries {
		durations[i] = e.duration
		total += e.duration
		if e.success {
			snap.SuccessCalls++
		} else {
			snap.FailureCalls++
		}
		if e.duration < snap.Min {
			snap.Min = e.duration
		}
		if e.duration > snap.Max {
			snap.Max = e.duration
		}
	}

	snap.TotalCalls = n
	snap.FailureRate = float64(snap.FailureCalls) / float64(n)
	snap.AverageResponseTime = total / time.Duration(n)
	snap.LastCallTime = m.entries[n-1].at

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	snap.P50 = percentile(durations, 50)
	snap.P95 = percentile(durations, 95)
	snap.P99 = percentile(durations, 99)

	return snap
}

// Reset discards all recorded calls.
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

// evict trims entries older than the window with a single forward scan.
// Entries are append-ordered, so no sort is needed. Must be called with the
// lock held.
func (m *MetricsCollector) evict(now time.Time) {
	cutoff := now.Add(-m.config.Window)
	i := 0
	for i < len(m.entries) && m.entries[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		m.entries = append(m.entries[:0], m.entries[i:]...)
	}
}

// percentile returns the value at sorted index ceil(p/100*n)-1, clamped to a
// valid index.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
