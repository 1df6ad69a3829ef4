package exits

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/bias"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

const (
	trigHigh = 241.93
	trigLow  = 240.19
)

func newMonitor() *Monitor {
	return NewMonitor(Config{}, zerolog.Nop())
}

func TestTwoClosesInsideTriggerExits(t *testing.T) {
	m := newMonitor()

	v := m.OnCandleClose(bias.Calls, 241.50, trigHigh, trigLow, 240.00)
	if v.Exit {
		t.Fatalf("exited after one inside close: %+v", v)
	}
	if inside, _ := m.Counters(); inside != 1 {
		t.Fatalf("inside count = %d, want 1", inside)
	}

	v = m.OnCandleClose(bias.Calls, 241.60, trigHigh, trigLow, 240.00)
	if !v.Exit || v.Reason != ReasonInsideTrigger {
		t.Fatalf("verdict = %+v, want inside-trigger exit", v)
	}
}

func TestCloseAboveTriggerResetsInsideCount(t *testing.T) {
	m := newMonitor()

	m.OnCandleClose(bias.Calls, 241.50, trigHigh, trigLow, 240.00)
	// Reclaiming the trigger clears the adverse streak.
	if v := m.OnCandleClose(bias.Calls, 242.10, trigHigh, trigLow, 240.00); v.Exit {
		t.Fatalf("unexpected exit: %+v", v)
	}
	if inside, _ := m.Counters(); inside != 0 {
		t.Fatalf("inside count = %d, want 0 after reclaim", inside)
	}
	if v := m.OnCandleClose(bias.Calls, 241.50, trigHigh, trigLow, 240.00); v.Exit {
		t.Fatalf("streak did not restart from zero: %+v", v)
	}
}

func TestSingleCloseAcrossVWAPExits(t *testing.T) {
	m := newMonitor()

	// Above the trigger but below VWAP: the VWAP rule fires on one close.
	v := m.OnCandleClose(bias.Calls, 242.10, trigHigh, trigLow, 242.50)
	if !v.Exit || v.Reason != ReasonVWAPCross {
		t.Fatalf("verdict = %+v, want vwap exit", v)
	}
}

func TestCountersMutuallyReset(t *testing.T) {
	m := NewMonitor(Config{VWAPCloses: 2}, zerolog.Nop())

	// Inside close arms the inside counter and zeroes vwap.
	m.OnCandleClose(bias.Calls, 241.50, trigHigh, trigLow, 241.00)
	if inside, vwap := m.Counters(); inside != 1 || vwap != 0 {
		t.Fatalf("counters = %d/%d, want 1/0", inside, vwap)
	}

	// Adverse VWAP close (above trigger, below VWAP) flips the modes.
	m.OnCandleClose(bias.Calls, 242.00, trigHigh, trigLow, 242.50)
	if inside, vwap := m.Counters(); inside != 0 || vwap != 1 {
		t.Fatalf("counters = %d/%d, want 0/1", inside, vwap)
	}
}

func TestPutsDirectionSymmetry(t *testing.T) {
	m := newMonitor()

	v := m.OnCandleClose(bias.Puts, 240.50, trigHigh, trigLow, 241.00)
	if v.Exit {
		t.Fatalf("exited after one inside close: %+v", v)
	}
	v = m.OnCandleClose(bias.Puts, 240.40, trigHigh, trigLow, 241.00)
	if !v.Exit || v.Reason != ReasonInsideTrigger {
		t.Fatalf("verdict = %+v, want inside-trigger exit", v)
	}

	m.Reset()
	v = m.OnCandleClose(bias.Puts, 239.80, trigHigh, trigLow, 239.50)
	if !v.Exit || v.Reason != ReasonVWAPCross {
		t.Fatalf("verdict = %+v, want vwap exit for puts", v)
	}
}

func TestTimeStopFiresAtCutoff(t *testing.T) {
	m := newMonitor()

	before := time.Date(2026, 3, 4, 15, 54, 0, 0, util.Eastern())
	if v := m.OnTick(bias.Calls, 242.00, trigHigh, trigLow, before); v.Exit {
		t.Fatalf("time stop fired early: %+v", v)
	}

	at := time.Date(2026, 3, 4, 15, 55, 0, 0, util.Eastern())
	v := m.OnTick(bias.Calls, 242.00, trigHigh, trigLow, at)
	if !v.Exit || v.Reason != ReasonTimeStop {
		t.Fatalf("verdict = %+v, want time stop", v)
	}
}

func TestExtremeMoveBeyondOppositeTrigger(t *testing.T) {
	m := newMonitor()
	ts := time.Date(2026, 3, 4, 11, 0, 0, 0, util.Eastern())

	v := m.OnTick(bias.Calls, 240.10, trigHigh, trigLow, ts)
	if !v.Exit || v.Reason != ReasonExtremeMove {
		t.Fatalf("verdict = %+v, want extreme move for calls", v)
	}
	v = m.OnTick(bias.Puts, 242.00, trigHigh, trigLow, ts)
	if !v.Exit || v.Reason != ReasonExtremeMove {
		t.Fatalf("verdict = %+v, want extreme move for puts", v)
	}
	if v := m.OnTick(bias.Calls, 241.00, trigHigh, trigLow, ts); v.Exit {
		t.Fatalf("in-range price exited: %+v", v)
	}
}

func TestGivebackThresholds(t *testing.T) {
	m := newMonitor()

	if v := m.Giveback(-10, false); v.Exit {
		t.Fatalf("small drawdown exited: %+v", v)
	}
	if v := m.Giveback(-10, true); v.Exit {
		t.Fatalf("drawdown above tighten threshold exited: %+v", v)
	}

	v := m.Giveback(-12, true)
	if !v.Exit || v.Reason != ReasonTightenGiveback {
		t.Fatalf("verdict = %+v, want tightened giveback under VWAP", v)
	}
	v = m.Giveback(-25, false)
	if !v.Exit || v.Reason != ReasonMaxGiveback {
		t.Fatalf("verdict = %+v, want max giveback", v)
	}
}
