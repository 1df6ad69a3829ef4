package market

import (
	"sync"
	"time"
)

// BarBuilder folds ticks into fixed-interval candles. A tick landing in a new
// interval bucket completes the open candle and returns it; intermediate ticks
// return nil.
type BarBuilder struct {
	mu       sync.Mutex
	interval time.Duration
	cur      *Bar
	bucket   time.Time
}

// NewBarBuilder creates a builder for the supplied interval (5m by default).
func NewBarBuilder(interval time.Duration) *BarBuilder {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &BarBuilder{interval: interval}
}

// Add folds a tick into the open candle, returning the previous candle when
// the tick opens a new interval bucket.
func (b *BarBuilder) Add(t Tick) *Bar {
	b.mu.Lock()
	defer b.mu.Unlock()

	bucket := t.Ts.Truncate(b.interval)
	if b.cur == nil {
		b.open(t, bucket)
		return nil
	}
	if bucket.Equal(b.bucket) {
		if t.Price > b.cur.High {
			b.cur.High = t.Price
		}
		if t.Price < b.cur.Low {
			b.cur.Low = t.Price
		}
		b.cur.Close = t.Price
		b.cur.Volume += t.Volume
		b.cur.End = t.Ts
		return nil
	}

	done := *b.cur
	done.End = b.bucket.Add(b.interval)
	b.open(t, bucket)
	return &done
}

// Flush returns the open candle without completing it, or nil.
func (b *BarBuilder) Flush() *Bar {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return nil
	}
	cp := *b.cur
	return &cp
}

// Reset drops the open candle, used at day rollover.
func (b *BarBuilder) Reset() {
	b.mu.Lock()
	b.cur = nil
	b.mu.Unlock()
}

func (b *BarBuilder) open(t Tick, bucket time.Time) {
	b.bucket = bucket
	b.cur = &Bar{
		Symbol: t.Symbol,
		Open:   t.Price,
		High:   t.Price,
		Low:    t.Price,
		Close:  t.Price,
		Volume: t.Volume,
		Start:  bucket,
		End:    t.Ts,
	}
}
