package resilience

import (
	"sync"
	"time"
)

// WindowKind selects how a sliding window trims old outcomes.
type WindowKind string

const (
	// WindowCount keeps the last Size outcomes.
	WindowCount WindowKind = "count"
	// WindowTime keeps outcomes recorded within the last Span.
	WindowTime WindowKind = "time"
)

// WindowConfig configures a sliding window.
type WindowConfig struct {
	// Kind selects count-based or time-based trimming.
	Kind WindowKind
	// Size is the capacity of a count-based window.
	Size int
	// Span is the duration covered by a time-based window.
	Span time.Duration
}

// DefaultWindowConfig returns a count-based window of the last 10 outcomes.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{Kind: WindowCount, Size: 10}
}

// WindowResult is a point-in-time view of a sliding window.
type WindowResult struct {
	TotalCalls   int
	FailureCount int
	// FailureRate is failures/total, 0 for an empty window.
	FailureRate float64
}

// SlidingWindow records recent call outcomes and reports the current failure
// rate. Implementations are safe for concurrent use.
type SlidingWindow interface {
	// Record adds an outcome. Outcomes are never reclassified; only
	// insertion and trimming mutate the window.
	Record(success bool)
	// Result returns the current totals. An empty window reports a zero
	// failure rate so it can never trip a threshold.
	Result() WindowResult
	// Reset discards all recorded outcomes.
	Reset()
}

// NewSlidingWindow creates a sliding window of the configured kind.
func NewSlidingWindow(config WindowConfig) SlidingWindow {
	switch config.Kind {
	case WindowTime:
		span := config.Span
		if span <= 0 {
			span = time.Minute
		}
		return &timeWindow{span: span}
	default:
		size := config.Size
		if size <= 0 {
			size = 10
		}
		return &countWindow{buf: make([]bool, size)}
	}
}

// countWindow is a fixed-size ring buffer of outcomes. Inserting past
// capacity overwrites the oldest entry.
type countWindow struct {
	mu    sync.Mutex
	buf   []bool // true = failure
	pos   int    // next write position
	count int    // recorded outcomes, up to len(buf)
	fails int
}

func (w *countWindow) Record(success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count == len(w.buf) {
		if w.buf[w.pos] {
			w.fails--
		}
	} else {
		w.count++
	}

	w.buf[w.pos] = !success
	if !success {
		w.fails++
	}
	w.pos = (w.pos + 1) % len(w.buf)
}

func (w *countWindow) Result() WindowResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := WindowResult{TotalCalls: w.count, FailureCount: w.fails}
	if w.count > 0 {
		r.FailureRate = float64(w.fails) / float64(w.count)
	}
	return r
}

func (w *countWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = 0
	w.count = 0
	w.fails = 0
}

type windowEntry struct {
	at      time.Time
	failure bool
}

// timeWindow keeps timestamped outcomes and trims entries older than span on
// every query. Entries are append-ordered, so trimming is a forward scan.
type timeWindow struct {
	mu      sync.Mutex
	span    time.Duration
	entries []windowEntry
}

func (w *timeWindow) Record(success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(time.Now())
	w.entries = append(w.entries, windowEntry{at: time.Now(), failure: !success})
}

func (w *timeWindow) Result() WindowResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(time.Now())

	r := WindowResult{TotalCalls: len(w.entries)}
	for _, e := range w.entries {
		if e.failure {
			r.FailureCount++
		}
	}
	if r.TotalCalls > 0 {
		r.FailureRate = float64(r.FailureCount) / float64(r.TotalCalls)
	}
	return r
}

func (w *timeWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}

// evict must be called with the lock held.
func (w *timeWindow) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.entries) && w.entries[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
}
