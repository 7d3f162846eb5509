package analyzer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Phase names a stage of an analysis run.
type Phase string

const (
	PhaseIndex  Phase = "indexing"
	PhaseDetect Phase = "detecting"
)

// ProgressFunc is called after every processed item. current counts items
// finished in phase so far, total is the size of the phase.
type ProgressFunc func(phase Phase, current, total int)

// Tracker reports progress for a run that moves through phases.
// It is safe for concurrent use from multiple goroutines.
type Tracker struct {
	mu       sync.RWMutex
	phase    Phase
	total    atomic.Int64
	current  atomic.Int64
	callback ProgressFunc
}

// NewTracker creates a tracker that invokes callback on every Tick.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Begin starts a new phase of total items and resets the count.
func (t *Tracker) Begin(phase Phase, total int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()
	t.total.Store(int64(total))
	t.current.Store(0)
}

// Tick marks one item of the current phase as done.
func (t *Tracker) Tick() {
	if t == nil {
		return
	}
	current := int(t.current.Add(1))
	if t.callback != nil {
		t.callback(t.Phase(), current, t.Total())
	}
}

// Phase returns the phase in progress.
func (t *Tracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

// Current returns the items finished in the current phase.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}

// Total returns the size of the current phase.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

type trackerKey struct{}

// WithTracker returns a context that carries a progress tracker.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext extracts the progress tracker from the context.
// Returns nil if no tracker was set; a nil Tracker ignores every call.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
