// Package journal keeps an in-memory record of strategy events and a
// JSONL trail on disk for post-session review.
package journal

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/event"
)

// Ledger stores published events in memory for quick inspection.
type Ledger struct {
	mu     sync.Mutex
	events []event.Event
	pnl    decimal.Decimal
	trades int
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{events: make([]event.Event, 0, capacity)}
}

// Publish appends an event, folding exits into the realized P&L tally.
func (l *Ledger) Publish(ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if ex, ok := ev.(event.ExitEvent); ok {
		l.pnl = l.pnl.Add(decimal.NewFromFloat(ex.FinalPnL))
		l.trades++
	}
	return nil
}

// Snapshot returns a copy of the recorded events.
func (l *Ledger) Snapshot() []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Event, len(l.events))
	copy(out, l.events)
	return out
}

// RealizedPnL is the sum of final P&L over recorded exits.
func (l *Ledger) RealizedPnL() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pnl
}

// Trades reports the number of completed round trips.
func (l *Ledger) Trades() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trades
}

// Reset clears all stored events and tallies.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.events = l.events[:0]
	l.pnl = decimal.Zero
	l.trades = 0
	l.mu.Unlock()
}
