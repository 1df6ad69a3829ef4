// Package strategy hosts the consolidated variant scorer: momentum, gap,
// volume, and strength are weight bundles over one shared feature set rather
// than separate code paths.
package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/indicator"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

// Variant names a scoring configuration.
type Variant string

const (
	Momentum Variant = "momentum"
	Gap      Variant = "gap"
	Volume   Variant = "volume"
	Strength Variant = "strength"
	Combined Variant = "combined"
)

// Variants lists every configured scoring variant.
func Variants() []Variant { return []Variant{Momentum, Gap, Volume, Strength, Combined} }

// Score is a directional reading from one variant.
type Score struct {
	Variant    Variant
	Direction  string // "calls" or "puts"
	Value      float64
	Confidence float64
	Reason     string
	Ts         time.Time
}

type weights struct {
	momentum float64
	gap      float64
	volume   float64
	strength float64
}

var variantWeights = map[Variant]weights{
	Momentum: {momentum: 0.7, volume: 0.3},
	Gap:      {gap: 0.7, volume: 0.3},
	Volume:   {volume: 0.6, momentum: 0.4},
	Strength: {strength: 0.6, momentum: 0.4},
	Combined: {momentum: 0.35, gap: 0.2, volume: 0.25, strength: 0.2},
}

// Config carries the scorer thresholds.
type Config struct {
	Threshold    float64       // minimum |score| to emit (default 0.5)
	Cooldown     time.Duration // per-variant emission cooldown (default 10s)
	MomentumSpan time.Duration // look-back for price momentum (default 30s)
	VolumeSpan   time.Duration // look-back for volume z-score (default 3m)
	RSIPeriod    int           // default 14
	BlackoutMult float64       // threshold multiplier in blackout windows (default 1.75)
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 0.5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 10 * time.Second
	}
	if c.MomentumSpan <= 0 {
		c.MomentumSpan = 30 * time.Second
	}
	if c.VolumeSpan <= 0 {
		c.VolumeSpan = 3 * time.Minute
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.BlackoutMult <= 1 {
		c.BlackoutMult = 1.75
	}
	return c
}

// Scorer observes ticks and evaluates every variant over a shared feature set.
type Scorer struct {
	mu        sync.Mutex
	cfg       Config
	window    *market.Window
	rvwap     *indicator.RollingVWAP // volume-weighted momentum anchor
	prevClose float64
	lastPrice float64
	gains     []float64
	losses    []float64
	lastEmit  map[Variant]time.Time
	log       zerolog.Logger
}

// NewScorer builds a scorer over a bounded tick window.
func NewScorer(cfg Config, window *market.Window, log zerolog.Logger) *Scorer {
	cfg = cfg.withDefaults()
	return &Scorer{
		cfg:      cfg,
		window:   window,
		rvwap:    indicator.NewRollingVWAP(cfg.MomentumSpan),
		lastEmit: make(map[Variant]time.Time),
		log:      log,
	}
}

// Observe folds a tick into the feature state. The shared tick window is
// filled by the caller; Observe only maintains scorer-local state.
func (s *Scorer) Observe(t market.Tick) {
	if t.Price <= 0 {
		return
	}
	s.rvwap.Update(t.Price, t.Volume, t.Ts)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPrice > 0 {
		delta := t.Price - s.lastPrice
		if delta >= 0 {
			s.gains = append(s.gains, delta)
			s.losses = append(s.losses, 0)
		} else {
			s.gains = append(s.gains, 0)
			s.losses = append(s.losses, -delta)
		}
		if len(s.gains) > s.cfg.RSIPeriod {
			s.gains = s.gains[1:]
			s.losses = s.losses[1:]
		}
	}
	s.lastPrice = t.Price
	if s.prevClose == 0 {
		s.prevClose = t.Price
	}
}

// Rollover snapshots yesterday's close for gap detection and clears state.
func (s *Scorer) Rollover() {
	s.rvwap.Reset()
	s.mu.Lock()
	if s.lastPrice > 0 {
		s.prevClose = s.lastPrice
	}
	s.gains = s.gains[:0]
	s.losses = s.losses[:0]
	s.lastEmit = make(map[Variant]time.Time)
	s.mu.Unlock()
}

type features struct {
	momentum float64 // clamped excursion from the rolling VWAP anchor
	gap      float64 // normalized gap vs previous close
	volume   float64 // volume z-score squashed to [-1,1] with momentum sign
	strength float64 // RSI mapped to [-1,1]
}

// Best evaluates every variant at the given time and returns the strongest
// score past the threshold, or nil. Blackout windows raise the bar.
func (s *Scorer) Best(now time.Time) *Score {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.featuresLocked()
	if !ok {
		return nil
	}
	threshold := s.cfg.Threshold
	if util.IsBlackout(now) {
		threshold *= s.cfg.BlackoutMult
	}

	var best *Score
	for _, v := range Variants() {
		w := variantWeights[v]
		val := w.momentum*f.momentum + w.gap*f.gap + w.volume*f.volume + w.strength*f.strength
		if math.Abs(val) < threshold {
			continue
		}
		if last, seen := s.lastEmit[v]; seen && now.Sub(last) < s.cfg.Cooldown {
			continue
		}
		dir := "calls"
		if val < 0 {
			dir = "puts"
		}
		sc := &Score{
			Variant:    v,
			Direction:  dir,
			Value:      val,
			Confidence: clamp(math.Abs(val), 0, 1),
			Reason:     fmt.Sprintf("mom=%.2f gap=%.2f vol=%.2f str=%.2f", f.momentum, f.gap, f.volume, f.strength),
			Ts:         now,
		}
		if best == nil || math.Abs(sc.Value) > math.Abs(best.Value) {
			best = sc
		}
	}
	if best != nil {
		s.lastEmit[best.Variant] = now
		s.log.Debug().Str("variant", string(best.Variant)).Float64("score", best.Value).Str("direction", best.Direction).Msg("variant score")
	}
	return best
}

func (s *Scorer) featuresLocked() (features, bool) {
	recent := s.window.Recent(s.cfg.VolumeSpan)
	if len(recent) < 10 {
		return features{}, false
	}

	var f features
	latest := recent[len(recent)-1]

	// Price momentum: latest price against the volume-weighted anchor over
	// the trailing momentum span.
	if anchor := s.rvwap.Value(); anchor > 0 {
		f.momentum = clamp(math.Tanh((latest.Price-anchor)/anchor*400), -1, 1)
	}

	// Gap versus previous session close.
	if s.prevClose > 0 {
		f.gap = clamp(math.Tanh((latest.Price-s.prevClose)/s.prevClose*100), -1, 1)
	}

	// Volume z-score of the latest sample, signed by momentum direction.
	mean, std := volumeStats(recent)
	if std > 0 {
		z := (latest.Volume - mean) / std
		mag := clamp(z/3, 0, 1)
		if f.momentum < 0 {
			mag = -mag
		}
		f.volume = mag
	}

	// RSI mapped so overbought leans calls, oversold leans puts.
	if rsi, ok := s.rsiLocked(); ok {
		f.strength = clamp((rsi-50)/50, -1, 1)
	}

	return f, true
}

func (s *Scorer) rsiLocked() (float64, bool) {
	if len(s.gains) < s.cfg.RSIPeriod {
		return 0, false
	}
	var gain, loss float64
	for i := range s.gains {
		gain += s.gains[i]
		loss += s.losses[i]
	}
	if loss == 0 {
		if gain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := gain / loss
	return 100 - 100/(1+rs), true
}

func volumeStats(ticks []market.Tick) (mean, std float64) {
	if len(ticks) == 0 {
		return 0, 0
	}
	for _, tk := range ticks {
		mean += tk.Volume
	}
	mean /= float64(len(ticks))
	for _, tk := range ticks {
		d := tk.Volume - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(ticks)))
	return mean, std
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
