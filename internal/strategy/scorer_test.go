package strategy

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

func newScorer(cfg Config) (*Scorer, *market.Window) {
	w := market.NewWindow(20 * time.Minute)
	return NewScorer(cfg, w, zerolog.Nop()), w
}

func feedRamp(s *Scorer, w *market.Window, base time.Time, start, step, vol float64, n int) time.Time {
	ts := base
	for i := 0; i < n; i++ {
		ts = base.Add(time.Duration(i) * time.Second)
		tk := market.Tick{Symbol: "IWM", Price: start + step*float64(i), Volume: vol, Ts: ts}
		w.Add(tk)
		s.Observe(tk)
	}
	return ts
}

func TestBestEmitsOnStrongMomentum(t *testing.T) {
	s, w := newScorer(Config{})
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, util.Eastern())

	// A steady ramp: strong positive momentum, flat prior close means a gap too.
	last := feedRamp(s, w, base, 240.00, 0.05, 100, 60)

	sc := s.Best(last)
	if sc == nil {
		t.Fatal("no score on a strong ramp")
	}
	if sc.Direction != "calls" {
		t.Fatalf("direction = %s, want calls", sc.Direction)
	}
	if sc.Confidence <= 0 || sc.Confidence > 1 {
		t.Fatalf("confidence = %f out of range", sc.Confidence)
	}
}

func TestBestQuietTapeEmitsNothing(t *testing.T) {
	s, w := newScorer(Config{})
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, util.Eastern())

	last := feedRamp(s, w, base, 240.00, 0, 100, 60)
	if sc := s.Best(last); sc != nil {
		t.Fatalf("score on flat tape: %+v", sc)
	}
}

func TestBestNeedsWarmup(t *testing.T) {
	s, w := newScorer(Config{})
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, util.Eastern())

	last := feedRamp(s, w, base, 240.00, 0.10, 100, 5)
	if sc := s.Best(last); sc != nil {
		t.Fatalf("score before warmup: %+v", sc)
	}
}

func TestCooldownSuppressesRepeatEmission(t *testing.T) {
	s, w := newScorer(Config{Cooldown: time.Minute})
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, util.Eastern())

	last := feedRamp(s, w, base, 240.00, 0.05, 100, 60)
	first := s.Best(last)
	if first == nil {
		t.Fatal("no initial score")
	}

	// Immediately after, the winning variant sits in cooldown. Another variant
	// may still emit, but the same one must not.
	second := s.Best(last.Add(time.Second))
	if second != nil && second.Variant == first.Variant {
		t.Fatalf("variant %s emitted twice inside cooldown", first.Variant)
	}
}

func TestBlackoutRaisesThreshold(t *testing.T) {
	s, w := newScorer(Config{})
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, util.Eastern())

	// A gentle ramp clears the normal bar but not 1.75x of it.
	last := feedRamp(s, w, base, 240.00, 0.005, 100, 60)
	if s.Best(last) == nil {
		t.Fatal("gentle ramp should score during the open window")
	}

	s2, w2 := newScorer(Config{})
	lunch := time.Date(2026, 3, 4, 12, 0, 0, 0, util.Eastern())
	lunchLast := feedRamp(s2, w2, lunch, 240.00, 0.005, 100, 60)
	if sc := s2.Best(lunchLast); sc != nil {
		t.Fatalf("same ramp scored inside the lunch blackout: %+v", sc)
	}
}

func TestMomentumAnchorIsVolumeWeighted(t *testing.T) {
	run := func(volBase, volPop float64) *Score {
		s, w := newScorer(Config{})
		base := time.Date(2026, 3, 4, 10, 0, 0, 0, util.Eastern())
		ts := base
		for i := 0; i < 50; i++ {
			ts = base.Add(time.Duration(i) * time.Second)
			tk := market.Tick{Symbol: "IWM", Price: 240.00, Volume: volBase, Ts: ts}
			w.Add(tk)
			s.Observe(tk)
		}
		for i := 50; i < 60; i++ {
			ts = base.Add(time.Duration(i) * time.Second)
			tk := market.Tick{Symbol: "IWM", Price: 240.50, Volume: volPop, Ts: ts}
			w.Add(tk)
			s.Observe(tk)
		}
		return s.Best(ts)
	}

	// Heavy volume at the base pins the anchor below the pop, so the excursion
	// reads strong. Heavy volume at the pop drags the anchor up to price and
	// the same tape reads weak.
	anchored := run(5000, 1)
	dragged := run(1, 5000)
	if anchored == nil || dragged == nil {
		t.Fatal("expected scores from both tapes")
	}
	if anchored.Value <= dragged.Value {
		t.Fatalf("anchor ignores volume: %.4f <= %.4f", anchored.Value, dragged.Value)
	}
}

func TestRolloverResetsGapBaseline(t *testing.T) {
	s, w := newScorer(Config{})
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, util.Eastern())

	feedRamp(s, w, base, 240.00, 0.05, 100, 60)
	s.Rollover()

	// After rollover the previous close tracks the last price, so a fresh flat
	// tape at that level shows no gap.
	w.Reset()
	next := time.Date(2026, 3, 5, 10, 0, 0, 0, util.Eastern())
	last := feedRamp(s, w, next, 242.95, 0, 100, 60)
	if sc := s.Best(last); sc != nil {
		t.Fatalf("score on flat tape after rollover: %+v", sc)
	}
}
