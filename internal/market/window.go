package market

import (
	"sync"
	"time"
)

// Window buffers recent ticks over a bounded duration, pruning as it fills.
type Window struct {
	mu    sync.Mutex
	span  time.Duration
	ticks []Tick
}

// NewWindow creates a bounded tick buffer spanning the supplied duration.
func NewWindow(span time.Duration) *Window {
	if span <= 0 {
		span = 20 * time.Minute
	}
	return &Window{span: span}
}

// Add appends a tick and drops samples that fell out of the span.
func (w *Window) Add(t Tick) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ticks = append(w.ticks, t)
	cutoff := t.Ts.Add(-w.span)
	idx := 0
	for i, tk := range w.ticks {
		if tk.Ts.After(cutoff) {
			idx = i
			break
		}
		idx = i + 1
	}
	if idx > 0 && idx <= len(w.ticks) {
		w.ticks = w.ticks[idx:]
	}
}

// Recent returns a copy of the ticks inside the trailing duration.
func (w *Window) Recent(d time.Duration) []Tick {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ticks) == 0 {
		return nil
	}
	cutoff := w.ticks[len(w.ticks)-1].Ts.Add(-d)
	start := 0
	for i, tk := range w.ticks {
		if tk.Ts.After(cutoff) {
			start = i
			break
		}
		start = i + 1
	}
	out := make([]Tick, len(w.ticks)-start)
	copy(out, w.ticks[start:])
	return out
}

// Last returns the most recent tick, if any.
func (w *Window) Last() (Tick, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ticks) == 0 {
		return Tick{}, false
	}
	return w.ticks[len(w.ticks)-1], true
}

// Len returns the buffered sample count.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ticks)
}

// Reset drops all buffered ticks.
func (w *Window) Reset() {
	w.mu.Lock()
	w.ticks = w.ticks[:0]
	w.mu.Unlock()
}
