// Package engine orchestrates the signal pipeline: ticks flow through the
// aggregator, VWAP/EMA filters, bias classifier, confirmation machine, sizing
// book, and exit monitor. The engine owns the single Position slot and
// serializes every state write behind one mutex.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/bias"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/chain"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/confirm"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/event"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/exits"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/indicator"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/metrics"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/sizing"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/strategy"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

// Fill is an asynchronous execution report merged back into the open position.
type Fill struct {
	OrderID    string
	PositionID string
	Price      float64
	Quantity   int
	Ts         time.Time
}

// Config bundles the engine knobs not owned by a component.
type Config struct {
	Symbol   string
	Cooldown time.Duration    // minimum gap between an exit and the next entry
	Variant  strategy.Variant // contract-selection variant when no score is active
}

// Engine drives the overnight-bias pipeline for a single symbol.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	classifier *bias.Classifier
	machine    *confirm.Machine
	book       *sizing.Book
	monitor    *exits.Monitor
	selector   *chain.Selector
	scorer     *strategy.Scorer

	window      *market.Window
	sessionVWAP *indicator.VWAP
	ema20       *indicator.EMA
	fiveMin     *market.BarBuilder

	sinks   []event.Sink
	pending []event.Event

	// dispatchMu orders sink delivery once the state mutex has released.
	dispatchMu sync.Mutex

	day       string
	dayBias   *bias.Bias
	degraded  bool
	pos       *Position
	lastExit  time.Time
	lastScore *strategy.Score

	log zerolog.Logger
}

// Deps collects the injected components.
type Deps struct {
	Classifier *bias.Classifier
	Machine    *confirm.Machine
	Book       *sizing.Book
	Monitor    *exits.Monitor
	Selector   *chain.Selector
	Scorer     *strategy.Scorer
	Window     *market.Window
}

// New wires an engine from explicitly constructed components.
func New(cfg Config, deps Deps, log zerolog.Logger) *Engine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Variant == "" {
		cfg.Variant = strategy.Combined
	}
	if deps.Window == nil {
		deps.Window = market.NewWindow(20 * time.Minute)
	}
	return &Engine{
		cfg:         cfg,
		classifier:  deps.Classifier,
		machine:     deps.Machine,
		book:        deps.Book,
		monitor:     deps.Monitor,
		selector:    deps.Selector,
		scorer:      deps.Scorer,
		window:      deps.Window,
		sessionVWAP: indicator.NewVWAP(),
		ema20:       indicator.NewEMA(20),
		fiveMin:     market.NewBarBuilder(5 * time.Minute),
		log:         log,
	}
}

// AddSink registers an event consumer (alerting, broker, journal).
func (e *Engine) AddSink(s event.Sink) {
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
}

// publishLocked queues an event for delivery once the state mutex releases.
// Sinks perform network I/O; they must never run inside the tick path.
func (e *Engine) publishLocked(ev event.Event) {
	metrics.EventsTotal.WithLabelValues(string(ev.Kind())).Inc()
	e.pending = append(e.pending, ev)
}

// flushAndUnlock releases the state mutex and delivers queued events. The
// dispatch mutex is taken before the state mutex releases, so events reach
// sinks in queue order even under concurrent callers.
func (e *Engine) flushAndUnlock() {
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return
	}
	evs := e.pending
	e.pending = nil
	sinks := e.sinks
	e.dispatchMu.Lock()
	e.mu.Unlock()
	defer e.dispatchMu.Unlock()
	for _, ev := range evs {
		for _, s := range sinks {
			if err := s.Publish(ev); err != nil {
				e.log.Warn().Err(err).Str("type", string(ev.Kind())).Msg("sink publish failed")
			}
		}
	}
}

// OnTick processes one underlying tick in arrival order.
func (e *Engine) OnTick(t market.Tick) {
	if t.Price <= 0 || t.Symbol == "" {
		e.log.Warn().Str("symbol", t.Symbol).Float64("price", t.Price).Msg("skipping malformed tick")
		return
	}

	e.mu.Lock()
	defer e.flushAndUnlock()

	e.rolloverLocked(t.Ts)

	e.window.Add(t)
	e.sessionVWAP.Update(t.Price, t.Volume)
	e.ema20.Update(t.Price)
	if e.scorer != nil {
		e.scorer.Observe(t)
		if sc := e.scorer.Best(t.Ts); sc != nil {
			e.lastScore = sc
		}
	}
	metrics.TicksTotal.WithLabelValues(t.Symbol).Inc()

	if e.pos != nil {
		if v := e.monitor.OnTick(e.pos.Direction, t.Price, e.pos.TriggerHigh, e.pos.TriggerLow, t.Ts); v.Exit {
			e.closeLocked(v.Reason, t.Ts)
		} else {
			e.armRetestLocked(t.Price)
		}
	} else if e.machine.OnTick(t) {
		// retest cap exceeded; confirmation abandoned, back to watching
		e.log.Info().Msg("confirmation abandoned")
	}

	if bar := e.fiveMin.Add(t); bar != nil {
		metrics.BarsTotal.WithLabelValues(t.Symbol, "5m").Inc()
		e.onCandleCloseLocked(*bar)
	}
}

// OnOvernightBar ingests a completed 12-hour bar from the data collaborator.
func (e *Engine) OnOvernightBar(b market.Bar) {
	e.mu.Lock()
	defer e.flushAndUnlock()

	nb, err := e.classifier.OnOvernightBar(b)
	if err != nil {
		// Data gap: the day degrades to no bias and the strategy stays inactive.
		e.dayBias = nil
		e.degraded = true
		e.log.Warn().Err(err).Msg("degraded day: overnight bar unusable, no entries will be attempted")
		return
	}
	if nb == nil {
		if cur := e.classifier.Current(); cur == nil {
			e.dayBias = nil
		}
		return
	}
	if e.day != "" && util.ETDate(nb.SetAt) != e.day {
		// A late-arriving bar from a prior session never becomes today's bias.
		e.log.Warn().Str("bias_day", util.ETDate(nb.SetAt)).Str("day", e.day).Msg("overnight bar belongs to an earlier session, ignoring")
		e.classifier.Invalidate()
		return
	}
	e.dayBias = nb
	e.degraded = false

	ev, err := event.NewBiasEvent(e.cfg.Symbol, string(nb.Direction), nb.Confidence, nb.TriggerHigh, nb.TriggerLow, string(nb.BarType), nb.SetAt)
	if err != nil {
		e.log.Error().Err(err).Msg("bias event construction failed")
		return
	}
	e.publishLocked(ev)
}

// OnChain ingests a periodic options-chain snapshot: refreshes contract
// selection and marks the open position to market for scaling and giveback.
func (e *Engine) OnChain(snap market.ChainSnapshot) {
	e.selector.Refresh(snap)

	e.mu.Lock()
	defer e.flushAndUnlock()
	if e.pos == nil {
		return
	}
	mark, ok := e.selector.Mark(e.pos.ContractSymbol)
	if !ok || mark <= 0 {
		return
	}
	e.pos.Mark = mark
	if mark > e.pos.PeakPrice {
		e.pos.PeakPrice = mark
	}
	pnlFrac := (mark - e.pos.EntryPrice) / e.pos.EntryPrice

	if plan := e.book.NextScale(pnlFrac, e.pos.ScalesTaken); plan != nil {
		e.scaleOutLocked(plan, mark, pnlFrac, snap.Ts)
	}

	underVWAP := false
	if vwap := e.sessionVWAP.Value(); vwap > 0 {
		if last, ok := e.window.Last(); ok {
			if e.pos.Direction == bias.Calls {
				underVWAP = last.Price < vwap
			} else {
				underVWAP = last.Price > vwap
			}
		}
	}
	if v := e.monitor.Giveback(pnlFrac*100, underVWAP); v.Exit {
		e.closeLocked(v.Reason, snap.Ts)
	}
}

// OnFill merges an asynchronous execution report into the open position.
func (e *Engine) OnFill(f Fill) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos == nil || e.pos.ID != f.PositionID {
		e.log.Debug().Str("position", f.PositionID).Msg("fill for unknown position, dropping")
		return
	}
	if f.Price > 0 {
		e.pos.EntryPrice = f.Price
		if f.Price > e.pos.PeakPrice {
			e.pos.PeakPrice = f.Price
		}
	}
	e.pos.OrderID = f.OrderID
	e.log.Info().Str("order", f.OrderID).Float64("fill", f.Price).Msg("fill merged into position")
}

// Position returns a copy of the open position, or nil.
func (e *Engine) Position() *Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos == nil {
		return nil
	}
	cp := e.pos.clone()
	return &cp
}

// Bias returns the day's active bias, or nil.
func (e *Engine) Bias() *bias.Bias {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dayBias == nil {
		return nil
	}
	cp := *e.dayBias
	return &cp
}

func (e *Engine) onCandleCloseLocked(bar market.Bar) {
	vwap := e.sessionVWAP.Value()
	ema := e.ema20.Value()

	if e.pos != nil {
		if v := e.monitor.OnCandleClose(e.pos.Direction, bar.Close, e.pos.TriggerHigh, e.pos.TriggerLow, vwap); v.Exit {
			e.closeLocked(v.Reason, bar.End)
			return
		}
		e.maybeAddOnLocked(bar, vwap, ema)
		return
	}

	entry := e.machine.OnCandleClose(bar, e.dayBias, vwap, ema)
	if entry == nil {
		return
	}
	if !e.lastExit.IsZero() && bar.End.Sub(e.lastExit) < e.cfg.Cooldown {
		e.log.Info().Msg("entry suppressed by cooldown")
		return
	}
	e.enterLocked(entry)
}

func (e *Engine) enterLocked(entry *confirm.Entry) {
	variant := e.cfg.Variant
	if e.lastScore != nil && entry.Ts.Sub(e.lastScore.Ts) < 10*time.Minute {
		variant = e.lastScore.Variant
	}
	contract, ok := e.selector.Best(entry.Direction, variant)
	if !ok {
		e.log.Warn().Str("variant", string(variant)).Msg("no contract available for entry, skipping")
		return
	}
	mid := contract.Mid()

	d := e.book.Size(mid)
	if !d.Approved {
		metrics.SizingRejectedTotal.WithLabelValues(d.Reason).Inc()
		e.log.Info().Str("reason", d.Reason).Float64("option_price", mid).Msg("entry rejected by sizing")
		return
	}
	e.book.Commit(d)

	pos := &Position{
		ID:              uuid.NewString(),
		ContractSymbol:  contract.Ticker,
		Direction:       entry.Direction,
		EntryPrice:      mid,
		Mark:            mid,
		PeakPrice:       mid,
		EntryUnderlying: entry.Price,
		EntryTime:       entry.Ts,
		Contracts:       d.Contracts,
		Cost:            d.Cost,
		TriggerHigh:     triggerHigh(entry, e.dayBias),
		TriggerLow:      triggerLow(entry, e.dayBias),
		ScalesTaken:     make(map[sizing.ScaleKind]bool),
	}
	e.pos = pos
	e.monitor.Reset()

	ev := event.EntryEvent{
		PositionID:   pos.ID,
		Symbol:       e.cfg.Symbol,
		Direction:    string(entry.Direction),
		Contract:     contract.Ticker,
		Contracts:    d.Contracts,
		OptionPrice:  mid,
		EntryPrice:   entry.Price,
		TriggerLevel: entry.TriggerLevel,
		VWAP:         entry.VWAP,
		EMA20:        entry.EMA20,
		Confidence:   entry.Confidence,
		Ts:           entry.Ts,
	}
	if err := ev.Validate(); err != nil {
		e.log.Error().Err(err).Msg("entry event construction failed")
		return
	}
	e.publishLocked(ev)
	e.log.Info().Str("position", pos.ID).Str("contract", pos.ContractSymbol).Int("contracts", pos.Contracts).Msg("position opened")
}

func (e *Engine) scaleOutLocked(plan *sizing.ScalePlan, mark, pnlFrac float64, ts time.Time) {
	sold := int(float64(e.pos.Contracts) * plan.Fraction)
	if sold < 1 {
		sold = 1
	}
	if sold >= e.pos.Contracts {
		sold = e.pos.Contracts - 1
	}
	if sold < 1 {
		return
	}
	e.pos.Contracts -= sold
	e.pos.ScalesTaken[plan.Kind] = true

	proceeds := decimal.NewFromFloat(mark).Mul(decimal.NewFromInt(int64(sold)))
	e.book.Release(proceeds)
	realized := decimal.NewFromFloat(mark - e.pos.EntryPrice).Mul(decimal.NewFromInt(int64(sold)))
	e.book.RecordPnL(realized)

	ev := event.ScaleEvent{
		PositionID:    e.pos.ID,
		Symbol:        e.cfg.Symbol,
		Step:          string(plan.Kind),
		ContractsSold: sold,
		Remaining:     e.pos.Contracts,
		PnLPercent:    pnlFrac * 100,
		Ts:            ts,
	}
	if err := ev.Validate(); err != nil {
		e.log.Error().Err(err).Msg("scale event construction failed")
		return
	}
	e.publishLocked(ev)
	e.log.Info().Str("step", string(plan.Kind)).Int("sold", sold).Int("remaining", e.pos.Contracts).Msg("scale-out executed")
}

func (e *Engine) closeLocked(reason string, ts time.Time) {
	pos := e.pos
	if pos == nil {
		return
	}
	mark := pos.Mark
	if mark <= 0 {
		mark = pos.EntryPrice
	}
	pnl := decimal.NewFromFloat(mark - pos.EntryPrice).Mul(decimal.NewFromInt(int64(pos.Contracts)))
	proceeds := decimal.NewFromFloat(mark).Mul(decimal.NewFromInt(int64(pos.Contracts)))

	e.book.Release(proceeds)
	e.book.RecordPnL(pnl)
	e.monitor.Reset()
	e.machine.Reset()
	e.pos = nil
	e.lastExit = ts

	metrics.ExitsTotal.WithLabelValues(reason).Inc()
	pnlF, _ := pnl.Float64()
	ev := event.ExitEvent{
		PositionID: pos.ID,
		Symbol:     e.cfg.Symbol,
		Reason:     reason,
		FinalPnL:   pnlF,
		Ts:         ts,
	}
	if err := ev.Validate(); err != nil {
		e.log.Error().Err(err).Msg("exit event construction failed")
		return
	}
	e.publishLocked(ev)
	e.log.Info().Str("position", pos.ID).Str("reason", reason).Float64("pnl", pnlF).Msg("position closed")
}

// armRetestLocked marks the open position as having retested its trigger
// when price trades back into the tolerance band. A later close holding
// beyond the trigger unlocks the add-on tranche.
func (e *Engine) armRetestLocked(price float64) {
	if e.pos.RetestArmed || e.pos.AddOnDone {
		return
	}
	trigger := e.pos.TriggerHigh
	if e.pos.Direction == bias.Puts {
		trigger = e.pos.TriggerLow
	}
	if trigger <= 0 {
		return
	}
	band := trigger * e.machine.Tolerance()
	if price >= trigger-band && price <= trigger+band {
		e.pos.RetestArmed = true
		e.log.Debug().Float64("price", price).Float64("trigger", trigger).Msg("trigger retest while position open")
	}
}

// maybeAddOnLocked commits the add-on tranche after a clean retest: price
// touched the trigger band, then a 5-minute close held beyond the trigger on
// the right side of VWAP. At most one add-on per position.
func (e *Engine) maybeAddOnLocked(bar market.Bar, vwap, ema float64) {
	pos := e.pos
	if !pos.RetestArmed || pos.AddOnDone {
		return
	}
	trigger := pos.TriggerHigh
	held := bar.Close > pos.TriggerHigh && (vwap <= 0 || bar.Close > vwap)
	if pos.Direction == bias.Puts {
		trigger = pos.TriggerLow
		held = bar.Close < pos.TriggerLow && (vwap <= 0 || bar.Close < vwap)
	}
	if !held {
		return
	}
	pos.AddOnDone = true

	price := pos.Mark
	if m, ok := e.selector.Mark(pos.ContractSymbol); ok && m > 0 {
		price = m
	}
	d := e.book.SizeAddOn(price)
	if !d.Approved {
		metrics.SizingRejectedTotal.WithLabelValues(d.Reason).Inc()
		e.log.Info().Str("reason", d.Reason).Float64("option_price", price).Msg("add-on rejected by sizing")
		return
	}
	e.book.Commit(d)

	total := pos.Contracts + d.Contracts
	pos.EntryPrice = (pos.EntryPrice*float64(pos.Contracts) + price*float64(d.Contracts)) / float64(total)
	pos.Contracts = total
	pos.Cost = pos.Cost.Add(d.Cost)
	if price > pos.PeakPrice {
		pos.PeakPrice = price
	}

	conf := 0.0
	if e.dayBias != nil {
		conf = e.dayBias.Confidence
	}
	ev := event.EntryEvent{
		PositionID:   pos.ID,
		Symbol:       e.cfg.Symbol,
		Direction:    string(pos.Direction),
		Contract:     pos.ContractSymbol,
		Contracts:    d.Contracts,
		OptionPrice:  price,
		EntryPrice:   bar.Close,
		TriggerLevel: trigger,
		VWAP:         vwap,
		EMA20:        ema,
		Confidence:   conf,
		Ts:           bar.End,
	}
	if err := ev.Validate(); err != nil {
		e.log.Error().Err(err).Msg("add-on event construction failed")
		return
	}
	e.publishLocked(ev)
	e.log.Info().Str("position", pos.ID).Int("added", d.Contracts).Int("contracts", pos.Contracts).Msg("add-on tranche committed")
}

func (e *Engine) rolloverLocked(ts time.Time) {
	day := util.ETDate(ts)
	if e.day == day {
		return
	}
	first := e.day == ""
	e.day = day
	if first {
		// A bias classified on an earlier session must not survive into a
		// fresh start whose own overnight bar never arrived.
		if e.dayBias != nil && util.ETDate(e.dayBias.SetAt) != day {
			e.dayBias = nil
			e.classifier.Invalidate()
			e.log.Warn().Str("day", day).Msg("stale bias from a prior session discarded")
		}
		return
	}

	// A position should never survive the time stop, but never carry one
	// across a session boundary either.
	if e.pos != nil {
		e.closeLocked(exits.ReasonTimeStop, ts)
	}
	e.dayBias = nil
	e.degraded = false
	e.lastScore = nil
	e.classifier.Invalidate()
	e.machine.Reset()
	e.monitor.Reset()
	e.book.ResetDay()
	e.sessionVWAP.Reset()
	e.ema20.Reset()
	e.fiveMin.Reset()
	e.window.Reset()
	if e.scorer != nil {
		e.scorer.Rollover()
	}
	e.log.Info().Str("day", day).Msg("new session: state reset")
}

func triggerHigh(entry *confirm.Entry, b *bias.Bias) float64 {
	if b != nil {
		return b.TriggerHigh
	}
	if entry.Direction == bias.Calls {
		return entry.TriggerLevel
	}
	return 0
}

func triggerLow(entry *confirm.Entry, b *bias.Bias) float64 {
	if b != nil {
		return b.TriggerLow
	}
	if entry.Direction == bias.Puts {
		return entry.TriggerLevel
	}
	return 0
}
