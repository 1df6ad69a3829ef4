// Package bias classifies the completed 12-hour overnight bar into the day's
// directional lean and trigger levels.
package bias

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

// ErrDataGap marks a missing or incomplete overnight bar. The day degrades to
// no bias; callers log and keep the strategy inactive rather than fabricating
// levels.
var ErrDataGap = errors.New("overnight bar data gap")

// Direction is the day's presumed lean.
type Direction string

const (
	Calls Direction = "calls"
	Puts  Direction = "puts"
	None  Direction = "none"
)

// BarType is the overnight bar classification against the prior bar.
type BarType string

const (
	BarInside    BarType = "1"
	BarBreakUp   BarType = "2-up"
	BarBreakDown BarType = "2-down"
	BarOutside   BarType = "3"
	BarFirst     BarType = "first"
)

// Bias holds the day's direction, confidence, and trigger levels.
type Bias struct {
	Direction   Direction
	Confidence  float64
	TriggerHigh float64
	TriggerLow  float64
	BarType     BarType
	SetAt       time.Time
}

const (
	baseConfidence  = 0.7
	confidenceScale = 50.0
)

// Classifier keeps a bounded history of overnight bars and produces at most
// one Bias per trading day.
type Classifier struct {
	mu         sync.Mutex
	history    []market.Bar
	maxHistory int
	inside     *market.Bar
	current    *Bias
	lastDay    string
	log        zerolog.Logger
}

// NewClassifier builds a classifier retaining the last maxHistory bars.
func NewClassifier(maxHistory int, log zerolog.Logger) *Classifier {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &Classifier{maxHistory: maxHistory, log: log}
}

// OnOvernightBar ingests a completed 12-hour bar. It classifies once per day,
// gated on the bar close landing in the 03:00:00-03:00:30 ET band. Returns the
// new Bias when one is set, nil when the bar leaves the day unbiased, and
// ErrDataGap when the bar is unusable.
func (c *Classifier) OnOvernightBar(bar market.Bar) (*Bias, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !util.IsOvernightClose(bar.End) {
		return nil, nil
	}
	day := util.ETDate(bar.End)
	if day == c.lastDay {
		return nil, nil
	}
	if !bar.Complete() {
		c.lastDay = day
		c.current = nil
		return nil, ErrDataGap
	}

	c.lastDay = day
	c.history = append(c.history, bar)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}

	b := c.classify(bar)
	c.current = b
	if b == nil {
		return nil, nil
	}
	c.log.Info().
		Str("direction", string(b.Direction)).
		Float64("confidence", b.Confidence).
		Float64("trigger_high", b.TriggerHigh).
		Float64("trigger_low", b.TriggerLow).
		Str("bar_type", string(b.BarType)).
		Msg("overnight bias set")
	return b, nil
}

func (c *Classifier) classify(bar market.Bar) *Bias {
	if len(c.history) < 2 {
		c.log.Debug().Str("bar_type", string(BarFirst)).Msg("no prior overnight bar to classify against")
		return nil
	}
	prev := c.history[len(c.history)-2]

	// Inside bar: no directional information, but remember its range as the
	// tightest coil boundary for a later break.
	if bar.High <= prev.High && bar.Low >= prev.Low {
		cp := bar
		c.inside = &cp
		c.log.Debug().Str("bar_type", string(BarInside)).Msg("inside overnight bar, day unbiased")
		return nil
	}
	outside := bar.High > prev.High && bar.Low < prev.Low

	trigHigh, trigLow := bar.High, bar.Low
	if c.inside != nil && c.inside.End.Before(bar.Start) {
		trigHigh, trigLow = c.inside.High, c.inside.Low
	}

	if bar.Close > prev.High {
		bt := BarBreakUp
		if outside {
			bt = BarOutside
		}
		conf := baseConfidence + confidenceScale*(bar.Close-prev.High)/prev.High
		if conf > 1.0 {
			conf = 1.0
		}
		c.inside = nil
		return &Bias{
			Direction:   Calls,
			Confidence:  conf,
			TriggerHigh: trigHigh,
			TriggerLow:  trigLow,
			BarType:     bt,
			SetAt:       bar.End,
		}
	}
	if bar.Close < prev.Low {
		bt := BarBreakDown
		if outside {
			bt = BarOutside
		}
		conf := baseConfidence + confidenceScale*(prev.Low-bar.Close)/prev.Low
		if conf > 1.0 {
			conf = 1.0
		}
		c.inside = nil
		return &Bias{
			Direction:   Puts,
			Confidence:  conf,
			TriggerHigh: trigHigh,
			TriggerLow:  trigLow,
			BarType:     bt,
			SetAt:       bar.End,
		}
	}

	// Wide or outside bar without a directional close.
	if outside {
		c.log.Debug().Str("bar_type", string(BarOutside)).Msg("outside overnight bar without directional close, day unbiased")
	}
	return nil
}

// Current returns the active bias for the day, or nil.
func (c *Classifier) Current() *Bias {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// Invalidate clears the active bias at day rollover. Bar history survives so
// the next overnight bar classifies against its predecessor.
func (c *Classifier) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}
