// Package sizing manages the account capital pool, contract sizing, and
// profit scale-out rules.
package sizing

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Rejection reasons surfaced on sizing decisions.
const (
	RejectDailyLossLimit    = "daily loss limit reached"
	RejectInsufficientFunds = "insufficient capital for position"
	RejectInvalidPrice      = "invalid option price"
)

// ScaleKind identifies a profit scale-out step.
type ScaleKind string

const (
	Scale1 ScaleKind = "scale_1"
	Scale2 ScaleKind = "scale_2"
)

// ScalePlan describes a scale-out to execute.
type ScalePlan struct {
	Kind      ScaleKind
	Fraction  float64 // fraction of remaining contracts to sell
	Threshold float64 // profit threshold that armed it
}

// Decision is the result of a sizing request.
type Decision struct {
	Approved   bool
	Reason     string
	Contracts  int
	Cost       decimal.Decimal
	RiskAmount decimal.Decimal
}

// Config carries the sizing knobs.
type Config struct {
	RiskFraction    float64 // per-trade risk cap, clamped to [0.015, 0.03]
	DailyLossLimit  float64 // positive dollars; cumulative loss at/over this rejects entries
	Scale1Threshold float64 // profit fraction arming the first scale (default 0.30)
	Scale1Fraction  float64 // fraction of remaining contracts sold (default 0.50)
	Scale2Threshold float64 // default 0.70
	Scale2Fraction  float64 // default 0.30
	TierMultiplier  float64 // position-size multiplier for the symbol tier
}

func (c Config) withDefaults() Config {
	if c.RiskFraction < 0.015 {
		c.RiskFraction = 0.015
	}
	if c.RiskFraction > 0.03 {
		c.RiskFraction = 0.03
	}
	if c.DailyLossLimit <= 0 {
		c.DailyLossLimit = 700
	}
	if c.Scale1Threshold <= 0 {
		c.Scale1Threshold = 0.30
	}
	if c.Scale1Fraction <= 0 || c.Scale1Fraction > 1 {
		c.Scale1Fraction = 0.50
	}
	if c.Scale2Threshold <= 0 {
		c.Scale2Threshold = 0.70
	}
	if c.Scale2Fraction <= 0 || c.Scale2Fraction > 1 {
		c.Scale2Fraction = 0.30
	}
	if c.TierMultiplier <= 0 {
		c.TierMultiplier = 1.0
	}
	return c
}

// Book tracks account equity, the deployable cash pool (capital thirds), and
// daily P&L for the loss gate. The final third stays in reserve.
type Book struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	available decimal.Decimal
	dailyPnL  decimal.Decimal
	cfg       Config
	log       zerolog.Logger
}

var oneThird = decimal.NewFromInt(1).Div(decimal.NewFromInt(3))

// NewBook opens a capital book against the supplied account balance.
func NewBook(balance float64, cfg Config, log zerolog.Logger) *Book {
	bal := decimal.NewFromFloat(balance)
	return &Book{
		balance:   bal,
		available: bal.Sub(bal.Mul(oneThird)), // two thirds deployable, one third reserve
		cfg:       cfg.withDefaults(),
		log:       log,
	}
}

// Size computes contracts for a new entry at the given option price. The
// initial tranche commits one third of account equity; the binding constraint
// is min(capital-based contracts, risk-based contracts).
func (b *Book) Size(optionPrice float64) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sizeLocked(optionPrice)
}

// SizeAddOn sizes the add-on tranche committed after a clean retest of the
// trigger. The add-on draws another third of equity from the remaining pool,
// under the same risk cap and daily loss gate as the opener.
func (b *Book) SizeAddOn(optionPrice float64) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sizeLocked(optionPrice)
}

func (b *Book) sizeLocked(optionPrice float64) Decision {
	if optionPrice <= 0 {
		return Decision{Reason: RejectInvalidPrice}
	}
	limit := decimal.NewFromFloat(b.cfg.DailyLossLimit).Neg()
	if b.dailyPnL.LessThanOrEqual(limit) {
		return Decision{Reason: RejectDailyLossLimit}
	}

	price := decimal.NewFromFloat(optionPrice)
	tranche := b.balance.Mul(oneThird).Mul(decimal.NewFromFloat(b.cfg.TierMultiplier))
	byCapital := tranche.Div(price).IntPart()

	risk := b.balance.Mul(decimal.NewFromFloat(b.cfg.RiskFraction))
	byRisk := risk.Div(price).IntPart()

	contracts := byCapital
	if byRisk < contracts {
		contracts = byRisk
	}
	if contracts < 1 {
		return Decision{Reason: RejectInsufficientFunds}
	}

	cost := price.Mul(decimal.NewFromInt(contracts))
	if cost.GreaterThan(b.available) {
		return Decision{Reason: RejectInsufficientFunds}
	}
	return Decision{
		Approved:   true,
		Contracts:  int(contracts),
		Cost:       cost,
		RiskAmount: cost, // full premium at risk on invalidation
	}
}

// Commit deducts an approved entry's cost from the deployable pool.
func (b *Book) Commit(d Decision) {
	if !d.Approved {
		return
	}
	b.mu.Lock()
	b.available = b.available.Sub(d.Cost)
	b.mu.Unlock()
}

// Release returns freed capital (scale-out or close proceeds) to the pool.
func (b *Book) Release(amount decimal.Decimal) {
	b.mu.Lock()
	b.available = b.available.Add(amount)
	b.mu.Unlock()
}

// RecordPnL accumulates realized profit and loss into the daily gate.
func (b *Book) RecordPnL(pnl decimal.Decimal) {
	b.mu.Lock()
	b.dailyPnL = b.dailyPnL.Add(pnl)
	b.mu.Unlock()
}

// DailyPnL returns today's cumulative realized P&L.
func (b *Book) DailyPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dailyPnL
}

// Available returns the deployable cash pool.
func (b *Book) Available() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// ResetDay restores the pool and clears daily P&L at day rollover.
func (b *Book) ResetDay() {
	b.mu.Lock()
	b.available = b.balance.Sub(b.balance.Mul(oneThird))
	b.dailyPnL = decimal.Zero
	b.mu.Unlock()
	b.log.Info().Msg("capital pool reset for new day")
}

// NextScale returns the scale-out to execute at the given profit fraction,
// or nil. Each kind fires at most once per position via the taken set.
func (b *Book) NextScale(pnlFraction float64, taken map[ScaleKind]bool) *ScalePlan {
	b.mu.Lock()
	cfg := b.cfg
	b.mu.Unlock()

	if pnlFraction >= cfg.Scale1Threshold && !taken[Scale1] {
		return &ScalePlan{Kind: Scale1, Fraction: cfg.Scale1Fraction, Threshold: cfg.Scale1Threshold}
	}
	if pnlFraction >= cfg.Scale2Threshold && !taken[Scale2] {
		return &ScalePlan{Kind: Scale2, Fraction: cfg.Scale2Fraction, Threshold: cfg.Scale2Threshold}
	}
	return nil
}
