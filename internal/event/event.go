// Package event defines the tagged records the engine hands to alerting and
// order-execution collaborators. Each type validates its required fields at
// construction; the core never formats human-readable text.
package event

import (
	"errors"
	"time"
)

// Type tags an event for sinks that switch on kind.
type Type string

const (
	TypeBias  Type = "bias"
	TypeEntry Type = "entry"
	TypeExit  Type = "exit"
	TypeScale Type = "scale"
)

// Event is the contract between the engine and its sinks.
type Event interface {
	Kind() Type
	At() time.Time
}

// Sink consumes events; implementations include the alert client, the silent
// broker executor, and the journal. Publish may block on I/O: the engine
// delivers events outside its state mutex, in publication order.
type Sink interface {
	Publish(Event) error
}

// BiasEvent announces the day's overnight bias.
type BiasEvent struct {
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	Confidence  float64   `json:"confidence"`
	TriggerHigh float64   `json:"trigger_high"`
	TriggerLow  float64   `json:"trigger_low"`
	BarType     string    `json:"bar_type"`
	Ts          time.Time `json:"ts"`
}

func (e BiasEvent) Kind() Type    { return TypeBias }
func (e BiasEvent) At() time.Time { return e.Ts }

// NewBiasEvent validates and builds a bias announcement.
func NewBiasEvent(symbol, direction string, confidence, trigHigh, trigLow float64, barType string, ts time.Time) (BiasEvent, error) {
	if symbol == "" || direction == "" {
		return BiasEvent{}, errors.New("bias event requires symbol and direction")
	}
	if trigHigh < trigLow {
		return BiasEvent{}, errors.New("bias event trigger high below trigger low")
	}
	return BiasEvent{
		Symbol:      symbol,
		Direction:   direction,
		Confidence:  confidence,
		TriggerHigh: trigHigh,
		TriggerLow:  trigLow,
		BarType:     barType,
		Ts:          ts,
	}, nil
}

// EntryEvent announces a confirmed entry with its sizing.
type EntryEvent struct {
	PositionID   string    `json:"position_id"`
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"`
	Contract     string    `json:"contract"`
	Contracts    int       `json:"contracts"`
	OptionPrice  float64   `json:"option_price"`
	EntryPrice   float64   `json:"entry_price"` // underlying at confirmation
	TriggerLevel float64   `json:"trigger_level"`
	VWAP         float64   `json:"vwap"`
	EMA20        float64   `json:"ema20"`
	Confidence   float64   `json:"confidence"`
	Ts           time.Time `json:"ts"`
}

func (e EntryEvent) Kind() Type    { return TypeEntry }
func (e EntryEvent) At() time.Time { return e.Ts }

// Validate enforces the required fields.
func (e EntryEvent) Validate() error {
	if e.PositionID == "" || e.Symbol == "" || e.Direction == "" || e.Contract == "" {
		return errors.New("entry event missing identifiers")
	}
	if e.Contracts < 1 {
		return errors.New("entry event requires at least one contract")
	}
	if e.OptionPrice <= 0 {
		return errors.New("entry event requires a positive option price")
	}
	return nil
}

// ScaleEvent announces a partial profit-taking scale-out.
type ScaleEvent struct {
	PositionID    string    `json:"position_id"`
	Symbol        string    `json:"symbol"`
	Step          string    `json:"step"`
	ContractsSold int       `json:"contracts_sold"`
	Remaining     int       `json:"remaining"`
	PnLPercent    float64   `json:"pnl_percent"`
	Ts            time.Time `json:"ts"`
}

func (e ScaleEvent) Kind() Type    { return TypeScale }
func (e ScaleEvent) At() time.Time { return e.Ts }

// Validate enforces the required fields.
func (e ScaleEvent) Validate() error {
	if e.PositionID == "" || e.Step == "" {
		return errors.New("scale event missing identifiers")
	}
	if e.ContractsSold < 1 || e.Remaining < 0 {
		return errors.New("scale event has invalid contract counts")
	}
	return nil
}

// ExitEvent announces a closed position.
type ExitEvent struct {
	PositionID string    `json:"position_id"`
	Symbol     string    `json:"symbol"`
	Reason     string    `json:"reason"`
	FinalPnL   float64   `json:"final_pnl"`
	Ts         time.Time `json:"ts"`
}

func (e ExitEvent) Kind() Type    { return TypeExit }
func (e ExitEvent) At() time.Time { return e.Ts }

// Validate enforces the required fields.
func (e ExitEvent) Validate() error {
	if e.PositionID == "" || e.Reason == "" {
		return errors.New("exit event missing identifiers")
	}
	return nil
}
