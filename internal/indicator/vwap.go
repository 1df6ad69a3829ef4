// Package indicator maintains the running filters (VWAP, EMA) that gate
// confirmation and invalidation decisions.
package indicator

import (
	"sync"
	"time"
)

// VWAP accumulates a session volume-weighted average price. It grows
// monotonically within a session and is reset at session start.
type VWAP struct {
	mu    sync.Mutex
	pv    float64
	vol   float64
	value float64
}

// NewVWAP returns an empty session accumulator.
func NewVWAP() *VWAP { return &VWAP{} }

// Update folds a price/volume sample in and returns the current value.
func (v *VWAP) Update(price, volume float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if price <= 0 || volume < 0 {
		return v.value
	}
	v.pv += price * volume
	v.vol += volume
	if v.vol > 0 {
		v.value = v.pv / v.vol
	}
	return v.value
}

// Value returns the current session VWAP, zero before the first sample.
func (v *VWAP) Value() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Reset clears the accumulator for a new session.
func (v *VWAP) Reset() {
	v.mu.Lock()
	v.pv, v.vol, v.value = 0, 0, 0
	v.mu.Unlock()
}

type vwapSample struct {
	pv  float64
	vol float64
	ts  time.Time
}

// RollingVWAP computes VWAP over a trailing window (1-minute, 5-minute).
type RollingVWAP struct {
	mu      sync.Mutex
	span    time.Duration
	samples []vwapSample
}

// NewRollingVWAP creates a windowed VWAP over the given span.
func NewRollingVWAP(span time.Duration) *RollingVWAP {
	if span <= 0 {
		span = time.Minute
	}
	return &RollingVWAP{span: span}
}

// Update folds a sample in, prunes expired ones, and returns the window VWAP.
func (r *RollingVWAP) Update(price, volume float64, ts time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if price > 0 && volume >= 0 {
		r.samples = append(r.samples, vwapSample{pv: price * volume, vol: volume, ts: ts})
	}
	cutoff := ts.Add(-r.span)
	idx := 0
	for i, s := range r.samples {
		if s.ts.After(cutoff) {
			idx = i
			break
		}
		idx = i + 1
	}
	if idx > 0 && idx <= len(r.samples) {
		r.samples = r.samples[idx:]
	}
	return r.valueLocked()
}

// Value returns the current window VWAP.
func (r *RollingVWAP) Value() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.valueLocked()
}

func (r *RollingVWAP) valueLocked() float64 {
	var pv, vol float64
	for _, s := range r.samples {
		pv += s.pv
		vol += s.vol
	}
	if vol <= 0 {
		return 0
	}
	return pv / vol
}

// Reset clears the window.
func (r *RollingVWAP) Reset() {
	r.mu.Lock()
	r.samples = r.samples[:0]
	r.mu.Unlock()
}
