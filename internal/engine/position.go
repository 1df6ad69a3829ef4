package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/bias"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/sizing"
)

// Position is the single open options position. All mutation happens under
// the engine mutex.
type Position struct {
	ID              string
	OrderID         string
	ContractSymbol  string
	Direction       bias.Direction
	EntryPrice      float64 // option fill price
	Mark            float64 // latest option mid from the chain
	PeakPrice       float64 // best mark since entry
	EntryUnderlying float64
	EntryTime       time.Time
	Contracts       int
	Cost            decimal.Decimal
	TriggerHigh     float64
	TriggerLow      float64
	ScalesTaken     map[sizing.ScaleKind]bool
	RetestArmed     bool // price traded back into the trigger band since entry
	AddOnDone       bool // the add-on tranche fired or was rejected
}

// PnLPercent is the unrealized option P&L against the entry fill.
func (p *Position) PnLPercent() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (p.Mark - p.EntryPrice) / p.EntryPrice * 100
}

func (p *Position) clone() Position {
	cp := *p
	cp.ScalesTaken = make(map[sizing.ScaleKind]bool, len(p.ScalesTaken))
	for k, v := range p.ScalesTaken {
		cp.ScalesTaken[k] = v
	}
	return cp
}
