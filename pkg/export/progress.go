package export

import (
	"sync"
)

// Stage identifies a high-level phase of an export run.
type Stage string

const (
	StagePreparing  Stage = "preparing"
	StageProcessing Stage = "processing"
	StageEncoding   Stage = "encoding"
	StageFinalizing Stage = "finalizing"
	StageCompleted  Stage = "completed"
)

var stageOrder = map[Stage]int{
	StagePreparing:  0,
	StageProcessing: 1,
	StageEncoding:   2,
	StageFinalizing: 3,
	StageCompleted:  4,
}

// Progress is a snapshot of export progress delivered to subscribers.
type Progress struct {
	Percent     float64
	Stage       Stage
	Message     string
	LoadedBytes int64
	TotalBytes  int64
}

// Slot identifies one progress subscription. Slots are generation-tagged so
// a stale slot from a previous epoch can never unsubscribe a live listener.
type Slot struct {
	index      int
	generation uint64
}

// ProgressTracker maintains stage-weighted progress and notifies subscribers.
// Percent is monotonically non-decreasing within a run and stage transitions
// only move forward; Reset rewinds both for a new run.
type ProgressTracker struct {
	mu         sync.Mutex
	current    Progress
	generation uint64
	listeners  []listenerSlot
	closed     bool
}

type listenerSlot struct {
	fn         func(Progress)
	generation uint64
	active     bool
}

// NewProgressTracker creates a ProgressTracker positioned at the start of a run.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		current: Progress{Stage: StagePreparing},
	}
}

// Subscribe registers a listener and returns its slot. Subscribing after
// Close returns a dead slot and the listener is never invoked.
func (t *ProgressTracker) Subscribe(fn func(Progress)) Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Slot{index: -1}
	}
	t.generation++
	slot := Slot{index: len(t.listeners), generation: t.generation}
	t.listeners = append(t.listeners, listenerSlot{fn: fn, generation: t.generation, active: true})
	return slot
}

// Unsubscribe removes a listener. Stale or dead slots are ignored.
func (t *ProgressTracker) Unsubscribe(slot Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || slot.index < 0 || slot.index >= len(t.listeners) {
		return
	}
	if t.listeners[slot.index].generation != slot.generation {
		return
	}
	t.listeners[slot.index].active = false
	t.listeners[slot.index].fn = nil
}

// Update merges the given progress into the current state and notifies
// subscribers. Percent regressions are clamped to the current value.
func (t *ProgressTracker) Update(p Progress) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if p.Percent < t.current.Percent {
		p.Percent = t.current.Percent
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	if p.Stage == "" {
		p.Stage = t.current.Stage
	} else if stageOrder[p.Stage] < stageOrder[t.current.Stage] {
		p.Stage = t.current.Stage
	}
	if p.Message == "" {
		p.Message = t.current.Message
	}
	if p.LoadedBytes == 0 {
		p.LoadedBytes = t.current.LoadedBytes
	}
	if p.TotalBytes == 0 {
		p.TotalBytes = t.current.TotalBytes
	}
	t.current = p
	t.notifyLocked()
}

// SetStage advances to the given stage with a status message.
func (t *ProgressTracker) SetStage(stage Stage, message string) {
	t.Update(Progress{Stage: stage, Message: message})
}

// SetPercent advances the overall percentage.
func (t *ProgressTracker) SetPercent(percent float64) {
	t.Update(Progress{Percent: percent})
}

// Complete jumps to 100% in the completed stage.
func (t *ProgressTracker) Complete(message string) {
	t.Update(Progress{Percent: 100, Stage: StageCompleted, Message: message})
}

// Reset rewinds the tracker to the start of a new run. Subscriptions survive
// the reset; their slots stay valid.
func (t *ProgressTracker) Reset() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.current = Progress{Stage: StagePreparing}
	t.notifyLocked()
}

// Current returns the latest progress snapshot.
func (t *ProgressTracker) Current() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Close marks the tracker dead and invalidates all slots. Subsequent calls to
// any method, including Close itself, are no-ops.
func (t *ProgressTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.listeners = nil
}

// notifyLocked invokes listeners outside the lock. Callers must hold mu; the
// lock is released before any listener runs.
func (t *ProgressTracker) notifyLocked() {
	snapshot := t.current
	var fns []func(Progress)
	for _, l := range t.listeners {
		if l.active && l.fn != nil {
			fns = append(fns, l.fn)
		}
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}
