// Package broker handles order submission against the Tradier sandbox and
// reports fills back to the engine. The engine never talks to the broker
// directly: orders are derived from published entry, scale, and exit events.
package broker

import (
	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/event"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/metrics"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// BuyToOpen opens a long option position.
	BuyToOpen Side = "buy_to_open"
	// SellToClose trims or closes a long option position.
	SellToClose Side = "sell_to_close"
)

// Order represents a placement request the executor can process.
type Order struct {
	PositionID string
	Symbol     string // OCC option symbol
	Side       Side
	Qty        int
	Price      float64 // limit, 0 for market
}

// Submitter places orders with a venue.
type Submitter interface {
	Submit(Order) (orderID string, err error)
}

// Executor turns strategy events into orders for a Submitter. It implements
// event.Sink so it wires into the engine alongside alerting and the journal.
type Executor struct {
	sub Submitter
	log zerolog.Logger
}

// NewExecutor binds a submitter. Pass NewSilent for signal-only operation.
func NewExecutor(sub Submitter, log zerolog.Logger) *Executor {
	return &Executor{sub: sub, log: log}
}

// Publish maps entry, scale, and exit events onto orders.
func (e *Executor) Publish(ev event.Event) error {
	var ord Order
	switch v := ev.(type) {
	case event.EntryEvent:
		ord = Order{PositionID: v.PositionID, Symbol: v.Contract, Side: BuyToOpen, Qty: v.Contracts, Price: v.OptionPrice}
	case event.ScaleEvent:
		ord = Order{PositionID: v.PositionID, Symbol: v.Symbol, Side: SellToClose, Qty: v.ContractsSold}
	case event.ExitEvent:
		ord = Order{PositionID: v.PositionID, Symbol: v.Symbol, Side: SellToClose, Qty: 0}
	default:
		return nil
	}
	metrics.OrdersTotal.WithLabelValues(ord.Symbol, string(ord.Side)).Inc()
	id, err := e.sub.Submit(ord)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", ord.Symbol).Str("side", string(ord.Side)).Msg("order submission failed")
		return err
	}
	e.log.Info().Str("order", id).Str("symbol", ord.Symbol).Str("side", string(ord.Side)).Int("qty", ord.Qty).Msg("order submitted")
	return nil
}

// Silent is a no-op submitter used when the bot runs signal-only.
type Silent struct{ log zerolog.Logger }

// NewSilent wraps a zerolog logger for future order submissions.
func NewSilent(log zerolog.Logger) *Silent { return &Silent{log: log} }

// Submit logs out the order request without touching a venue.
func (s *Silent) Submit(ord Order) (string, error) {
	s.log.Info().Str("symbol", ord.Symbol).Str("side", string(ord.Side)).Int("qty", ord.Qty).Float64("px", ord.Price).Msg("submit order (silent)")
	return "silent-" + ord.PositionID, nil
}
