// Package exits monitors open positions for hard invalidation: adverse
// 5-minute closes, VWAP loss, time stops, and extreme real-time moves.
package exits

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/bias"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

// Exit reasons carried on exit events.
const (
	ReasonInsideTrigger   = "two consecutive closes back inside trigger"
	ReasonVWAPCross       = "close across VWAP"
	ReasonTimeStop        = "time stop"
	ReasonExtremeMove     = "extreme move beyond opposite trigger"
	ReasonMaxGiveback     = "max giveback"
	ReasonTightenGiveback = "giveback below VWAP"
)

// Verdict is the outcome of an invalidation check.
type Verdict struct {
	Exit   bool
	Reason string
}

var hold = Verdict{}

// Config carries the invalidation thresholds.
type Config struct {
	MaxInsideCloses    int     // consecutive closes back inside the trigger range (default 2)
	VWAPCloses         int     // adverse closes across session VWAP (default 1)
	TimeStop           int     // minutes since midnight ET forcing exit (default 15:55)
	MaxGivebackPct     float64 // option P&L percent loss forcing exit (default 25)
	TightenGivebackPct float64 // smaller loss forcing exit when under VWAP (default 12)
}

func (c Config) withDefaults() Config {
	if c.MaxInsideCloses <= 0 {
		c.MaxInsideCloses = 2
	}
	if c.VWAPCloses <= 0 {
		c.VWAPCloses = 1
	}
	if c.TimeStop <= 0 {
		c.TimeStop = 15*60 + 55
	}
	if c.MaxGivebackPct <= 0 {
		c.MaxGivebackPct = 25
	}
	if c.TightenGivebackPct <= 0 {
		c.TightenGivebackPct = 12
	}
	return c
}

// Monitor tracks the two mutually resetting adverse-close counters for the
// open position. Incrementing one zeroes the other, so at most one adverse
// mode is in progress at a time.
type Monitor struct {
	mu          sync.Mutex
	insideCount int
	vwapCount   int
	cfg         Config
	log         zerolog.Logger
}

// NewMonitor builds a monitor with the supplied thresholds.
func NewMonitor(cfg Config, log zerolog.Logger) *Monitor {
	return &Monitor{cfg: cfg.withDefaults(), log: log}
}

// Counters exposes the adverse-close counters for inspection.
func (m *Monitor) Counters() (inside, vwap int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insideCount, m.vwapCount
}

// Reset zeroes both counters; called when a position opens or closes.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.insideCount, m.vwapCount = 0, 0
	m.mu.Unlock()
}

// OnCandleClose evaluates a completed 5-minute close against the trigger
// range and session VWAP while a position is open.
func (m *Monitor) OnCandleClose(dir bias.Direction, close, trigHigh, trigLow, vwap float64) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	insideAdverse := false
	switch dir {
	case bias.Calls:
		insideAdverse = close <= trigHigh
	case bias.Puts:
		insideAdverse = close >= trigLow
	}
	if insideAdverse {
		m.insideCount++
		m.vwapCount = 0
		if m.insideCount >= m.cfg.MaxInsideCloses {
			m.log.Warn().Int("closes", m.insideCount).Msg("hard invalidation: closes back inside trigger")
			return Verdict{Exit: true, Reason: ReasonInsideTrigger}
		}
	} else {
		m.insideCount = 0
	}

	if vwap > 0 {
		vwapAdverse := false
		switch dir {
		case bias.Calls:
			vwapAdverse = close < vwap
		case bias.Puts:
			vwapAdverse = close > vwap
		}
		if vwapAdverse {
			m.vwapCount++
			m.insideCount = 0
			if m.vwapCount >= m.cfg.VWAPCloses {
				m.log.Warn().Float64("close", close).Float64("vwap", vwap).Msg("hard invalidation: close across VWAP")
				return Verdict{Exit: true, Reason: ReasonVWAPCross}
			}
		} else {
			m.vwapCount = 0
		}
	}

	return hold
}

// OnTick evaluates the unconditional exits checked on every tick: the time
// stop and an extreme real-time move beyond the opposite trigger level.
func (m *Monitor) OnTick(dir bias.Direction, price, trigHigh, trigLow float64, ts time.Time) Verdict {
	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	if util.MinuteOfDay(ts) >= cfg.TimeStop {
		return Verdict{Exit: true, Reason: ReasonTimeStop}
	}
	switch dir {
	case bias.Calls:
		if trigLow > 0 && price < trigLow {
			return Verdict{Exit: true, Reason: ReasonExtremeMove}
		}
	case bias.Puts:
		if trigHigh > 0 && price > trigHigh {
			return Verdict{Exit: true, Reason: ReasonExtremeMove}
		}
	}
	return hold
}

// Giveback evaluates option-premium giveback exits from peak. pnlPct is the
// option P&L percent versus entry; underVWAP reports whether the underlying
// sits on the wrong side of session VWAP for the position's direction.
func (m *Monitor) Giveback(pnlPct float64, underVWAP bool) Verdict {
	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	if pnlPct <= -cfg.MaxGivebackPct {
		return Verdict{Exit: true, Reason: ReasonMaxGiveback}
	}
	if underVWAP && pnlPct <= -cfg.TightenGivebackPct {
		return Verdict{Exit: true, Reason: ReasonTightenGiveback}
	}
	return hold
}
