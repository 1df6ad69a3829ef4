// Package market standardizes payloads shared between data ingestion and the
// strategy pipeline.
package market

import "time"

// Tick models a per-second price/volume sample of the underlying.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Ts     time.Time
}

// Bar is an immutable snapshot of a completed interval (12h overnight or 5-minute).
type Bar struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Start  time.Time
	End    time.Time
}

// Complete reports whether the bar carries usable OHLC data.
func (b Bar) Complete() bool {
	return b.High > 0 && b.Low > 0 && b.Close > 0 && b.High >= b.Low
}

// OptionQuote is one contract row from a chain snapshot.
type OptionQuote struct {
	Ticker       string
	Strike       float64
	ContractType string // "call" or "put"
	Delta        float64
	Bid          float64
	Ask          float64
	Volume       float64
	OpenInterest float64
	Expiration   string // YYYY-MM-DD
}

// Mid returns the quote midpoint, or zero when the book is empty.
func (q OptionQuote) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// SpreadPercent returns the bid/ask spread as a percent of the midpoint.
func (q OptionQuote) SpreadPercent() float64 {
	mid := q.Mid()
	if mid <= 0 {
		return 100
	}
	return (q.Ask - q.Bid) / mid * 100
}

// ChainSnapshot is a full options-chain view delivered by the data collaborator.
type ChainSnapshot struct {
	Symbol     string
	Underlying float64
	Quotes     []OptionQuote
	Ts         time.Time
}
