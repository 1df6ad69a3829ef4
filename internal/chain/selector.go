// Package chain filters and ranks same-day option contracts for alerting.
// Contracts are alert targets only; the underlying's behavior drives entries.
package chain

import (
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/bias"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/strategy"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

// VariantSpec bounds contract selection for one scoring variant.
type VariantSpec struct {
	DeltaMin     float64
	DeltaMax     float64
	MaxSpreadPct float64
}

// DefaultSpecs returns the per-variant delta ranges and spread tolerances.
func DefaultSpecs() map[strategy.Variant]VariantSpec {
	return map[strategy.Variant]VariantSpec{
		strategy.Momentum: {DeltaMin: 0.30, DeltaMax: 0.45, MaxSpreadPct: 4.0},
		strategy.Gap:      {DeltaMin: 0.25, DeltaMax: 0.40, MaxSpreadPct: 5.0},
		strategy.Volume:   {DeltaMin: 0.35, DeltaMax: 0.50, MaxSpreadPct: 3.5},
		strategy.Strength: {DeltaMin: 0.40, DeltaMax: 0.55, MaxSpreadPct: 4.5},
		strategy.Combined: {DeltaMin: 0.30, DeltaMax: 0.50, MaxSpreadPct: 4.0},
	}
}

// Selector keeps the latest ranked 0DTE candidates per variant and side.
type Selector struct {
	mu    sync.Mutex
	specs map[strategy.Variant]VariantSpec
	best  map[strategy.Variant]map[string]market.OptionQuote // side -> quote
	marks map[string]float64                                 // contract ticker -> mid
	log   zerolog.Logger
}

// NewSelector builds a selector; nil specs fall back to the defaults.
func NewSelector(specs map[strategy.Variant]VariantSpec, log zerolog.Logger) *Selector {
	if specs == nil {
		specs = DefaultSpecs()
	}
	return &Selector{
		specs: specs,
		best:  make(map[strategy.Variant]map[string]market.OptionQuote),
		marks: make(map[string]float64),
		log:   log,
	}
}

// Refresh re-ranks candidates from a chain snapshot. Contracts not expiring
// today are dropped; missing deltas are estimated from moneyness.
func (s *Selector) Refresh(snap market.ChainSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry := util.TodaysExpiry(snap.Ts)
	var todays []market.OptionQuote
	for _, q := range snap.Quotes {
		if q.Expiration != expiry {
			continue
		}
		if q.Mid() <= 0 {
			continue
		}
		if q.Delta == 0 {
			q.Delta = estimateDelta(q, snap.Underlying)
			if q.Delta == 0 {
				continue
			}
		}
		todays = append(todays, q)
		s.marks[q.Ticker] = q.Mid()
	}

	for variant, spec := range s.specs {
		sides := make(map[string]market.OptionQuote, 2)
		for _, side := range []string{"call", "put"} {
			if q, ok := pick(todays, side, spec); ok {
				sides[side] = q
			}
		}
		s.best[variant] = sides
	}
	s.log.Debug().Int("chain", len(snap.Quotes)).Int("todays", len(todays)).Msg("contract selection refreshed")
}

// Best returns the ranked contract for a direction and variant.
func (s *Selector) Best(dir bias.Direction, variant strategy.Variant) (market.OptionQuote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	side := "call"
	if dir == bias.Puts {
		side = "put"
	}
	sides, ok := s.best[variant]
	if !ok {
		return market.OptionQuote{}, false
	}
	q, ok := sides[side]
	return q, ok
}

// Mark returns the last known midpoint for a contract ticker.
func (s *Selector) Mark(ticker string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.marks[ticker]
	return m, ok
}

func pick(quotes []market.OptionQuote, side string, spec VariantSpec) (market.OptionQuote, bool) {
	var candidates []market.OptionQuote
	for _, q := range quotes {
		if q.ContractType != side {
			continue
		}
		d := math.Abs(q.Delta)
		if d < spec.DeltaMin || d > spec.DeltaMax {
			continue
		}
		if q.SpreadPercent() > spec.MaxSpreadPct {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return market.OptionQuote{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := candidates[i].SpreadPercent(), candidates[j].SpreadPercent()
		if si != sj {
			return si < sj
		}
		return candidates[i].Volume+candidates[i].OpenInterest > candidates[j].Volume+candidates[j].OpenInterest
	})
	return candidates[0], true
}

// estimateDelta approximates delta from moneyness when the feed omits greeks.
// ATM sits near ±0.5 and drifts toward 0/±1 with distance from the spot.
func estimateDelta(q market.OptionQuote, underlying float64) float64 {
	if underlying <= 0 || q.Strike <= 0 {
		return 0
	}
	pct := (underlying - q.Strike) / underlying
	call := clampDelta(0.50+pct*8.0, 0.01, 0.99)
	if q.ContractType == "call" {
		return call
	}
	// put delta mirrors the call: delta_put = delta_call - 1
	return clampDelta(call-1, -0.99, -0.01)
}

func clampDelta(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
