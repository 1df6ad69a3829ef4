package indicator

import "sync"

// EMA is a standard exponential moving average with alpha = 2/(period+1),
// seeded with the first sample and updated on every tick.
type EMA struct {
	mu     sync.Mutex
	alpha  float64
	value  float64
	seeded bool
}

// NewEMA creates an EMA for the given period (20 by default).
func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 20
	}
	return &EMA{alpha: 2.0 / float64(period+1)}
}

// Update folds a price in and returns the new average.
func (e *EMA) Update(price float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if price <= 0 {
		return e.value
	}
	if !e.seeded {
		e.value = price
		e.seeded = true
		return e.value
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current average, zero before the first sample.
func (e *EMA) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.seeded {
		return 0
	}
	return e.value
}

// Reset clears the average for a new session.
func (e *EMA) Reset() {
	e.mu.Lock()
	e.value, e.seeded = 0, false
	e.mu.Unlock()
}
