// Package confirm implements the intraday 5-minute confirmation state machine
// that turns a trigger-level break into an entry signal.
package confirm

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/bias"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

// State names the machine's position in the confirmation lifecycle.
type State string

const (
	Idle      State = "idle"
	Watching  State = "watching"
	Pending   State = "pending_confirmation"
	Confirmed State = "confirmed"
)

// Entry is the signal emitted when a pending break confirms.
type Entry struct {
	Direction    bias.Direction
	Price        float64 // confirming candle close
	TriggerLevel float64
	VWAP         float64
	EMA20        float64
	Confidence   float64
	Ts           time.Time
}

// Machine watches completed 5-minute candles for a trigger break followed by
// a confirming close aligned with VWAP and EMA20. It emits at most one Entry
// per pending episode.
type Machine struct {
	mu        sync.Mutex
	state     State
	windows   []util.ClockWindow
	tolerance float64
	maxRetest int

	dir     bias.Direction
	trigger float64
	retests int
	inBand  bool

	log zerolog.Logger
}

// NewMachine builds the state machine with the supplied entry windows, retest
// tolerance (fraction, e.g. 0.001) and retest cap.
func NewMachine(windows []util.ClockWindow, tolerance float64, maxRetest int, log zerolog.Logger) *Machine {
	if tolerance <= 0 {
		tolerance = 0.001
	}
	if maxRetest <= 0 {
		maxRetest = 2
	}
	return &Machine{
		state:     Idle,
		windows:   windows,
		tolerance: tolerance,
		maxRetest: maxRetest,
		log:       log,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tolerance returns the retest band as a fraction of the trigger level.
func (m *Machine) Tolerance() float64 { return m.tolerance }

// RetestCount returns retests seen during the current pending episode.
func (m *Machine) RetestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retests
}

// Reset returns the machine to idle, dropping any pending episode. Called on
// confirmed entry and at day rollover.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.toIdle()
	m.mu.Unlock()
}

func (m *Machine) toIdle() {
	m.state = Idle
	m.dir = bias.None
	m.trigger = 0
	m.retests = 0
	m.inBand = false
}

func (m *Machine) toWatching() {
	m.state = Watching
	m.dir = bias.None
	m.trigger = 0
	m.retests = 0
	m.inBand = false
}

func (m *Machine) inWindow(t time.Time) bool {
	for _, w := range m.windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// OnTick counts retests of the trigger level while a confirmation is pending.
// It returns true when the retest cap is exceeded and the episode is
// abandoned (the break is considered failed, not an error).
func (m *Machine) OnTick(t market.Tick) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Pending || m.trigger <= 0 {
		return false
	}
	band := m.trigger * m.tolerance
	within := t.Price >= m.trigger-band && t.Price <= m.trigger+band
	if !within {
		m.inBand = false
		return false
	}
	if m.inBand {
		return false
	}
	m.inBand = true
	m.retests++
	if m.retests > m.maxRetest {
		m.log.Info().Int("retests", m.retests).Float64("trigger", m.trigger).Msg("retest cap exceeded, confirmation abandoned")
		m.toWatching()
		return true
	}
	m.log.Debug().Int("retests", m.retests).Float64("price", t.Price).Msg("trigger retest")
	return false
}

// OnCandleClose advances the machine on a completed 5-minute candle. The day
// bias b may be nil (no bias set). Returns a non-nil Entry exactly once per
// pending episode, when the confirming close lands.
func (m *Machine) OnCandleClose(c market.Bar, b *bias.Bias, vwap, ema20 float64) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b == nil || b.Direction == bias.None || !m.inWindow(c.End) {
		m.toIdle()
		return nil
	}

	switch m.state {
	case Idle:
		m.state = Watching
		fallthrough
	case Watching:
		if level, broke := breaks(c.Close, b); broke {
			m.state = Pending
			m.dir = b.Direction
			m.trigger = level
			m.retests = 0
			m.inBand = false
			m.log.Info().Str("direction", string(b.Direction)).Float64("close", c.Close).Float64("trigger", level).Msg("trigger break, confirmation pending")
		}
		return nil
	case Pending:
		if m.dir != b.Direction {
			// Bias flipped mid-episode; abandon and restart against the new lean.
			m.toWatching()
			return nil
		}
		if !beyond(c.Close, m.trigger, m.dir) {
			m.log.Info().Float64("close", c.Close).Float64("trigger", m.trigger).Msg("close back across trigger, break failed")
			m.toWatching()
			return nil
		}
		if !aligned(c.Close, vwap, m.dir) || !aligned(c.Close, ema20, m.dir) {
			// Beyond the trigger but not structurally aligned; keep waiting.
			return nil
		}
		entry := &Entry{
			Direction:    m.dir,
			Price:        c.Close,
			TriggerLevel: m.trigger,
			VWAP:         vwap,
			EMA20:        ema20,
			Confidence:   b.Confidence,
			Ts:           c.End,
		}
		m.log.Info().Str("direction", string(m.dir)).Float64("close", c.Close).Msg("entry confirmed")
		m.toIdle()
		return entry
	default:
		return nil
	}
}

func breaks(close float64, b *bias.Bias) (float64, bool) {
	switch b.Direction {
	case bias.Calls:
		if close > b.TriggerHigh {
			return b.TriggerHigh, true
		}
	case bias.Puts:
		if close < b.TriggerLow {
			return b.TriggerLow, true
		}
	}
	return 0, false
}

func beyond(close, trigger float64, dir bias.Direction) bool {
	if dir == bias.Calls {
		return close > trigger
	}
	return close < trigger
}

func aligned(close, level float64, dir bias.Direction) bool {
	if level <= 0 {
		return false
	}
	if dir == bias.Calls {
		return close > level
	}
	return close < level
}
