// Paper runs the full signal pipeline against the stub feed with a synthetic
// options chain, recording events to an in-memory ledger. Useful for shaking
// out wiring without touching Polygon or Tradier.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/bias"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/broker"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/chain"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/config"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/confirm"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/engine"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/exits"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/feed"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/journal"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/metrics"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/sizing"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/strategy"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	log := util.NewLogger("info")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	windows := make([]util.ClockWindow, 0, len(cfg.Strategy.EntryWindows))
	for _, w := range cfg.Strategy.EntryWindows {
		cw, err := util.NewClockWindow(w.Start, w.End)
		if err != nil {
			log.Fatal().Err(err).Str("start", w.Start).Str("end", w.End).Msg("bad entry window")
		}
		windows = append(windows, cw)
	}
	timeStop, err := util.ParseClock(cfg.Risk.TimeStop)
	if err != nil {
		log.Fatal().Err(err).Str("time_stop", cfg.Risk.TimeStop).Msg("bad time stop")
	}

	window := market.NewWindow(20 * time.Minute)
	eng := engine.New(engine.Config{
		Symbol:   cfg.Market.Symbol,
		Cooldown: time.Duration(cfg.Strategy.CooldownSecs) * time.Second,
		Variant:  strategy.Variant(cfg.Strategy.Variant),
	}, engine.Deps{
		Classifier: bias.NewClassifier(cfg.Strategy.BarHistory, log),
		Machine:    confirm.NewMachine(windows, cfg.Strategy.RetestTolerance, cfg.Strategy.MaxRetests, log),
		Book: sizing.NewBook(cfg.Risk.AccountBalance, sizing.Config{
			RiskFraction:   cfg.Risk.RiskFraction,
			DailyLossLimit: cfg.Risk.DailyLossLimit,
			TierMultiplier: cfg.Risk.TierMultiplier,
		}, log),
		Monitor:  exits.NewMonitor(exits.Config{TimeStop: timeStop}, log),
		Selector: chain.NewSelector(chain.DefaultSpecs(), log),
		Scorer:   strategy.NewScorer(strategy.Config{}, window, log),
		Window:   window,
	}, log)

	ledger := journal.NewLedger(256)
	eng.AddSink(ledger)
	eng.AddSink(broker.NewExecutor(broker.NewSilent(log), log))

	fd := feed.NewFeed(feed.ProviderStub, cfg.Market.Symbol, log)
	ticks := make(chan market.Tick, 1024)
	go func() {
		if err := fd.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	log.Info().Str("symbol", cfg.Market.Symbol).Msg("paper engine started")
	for {
		select {
		case <-ctx.Done():
			pnl, _ := ledger.RealizedPnL().Float64()
			log.Info().Int("events", len(ledger.Snapshot())).Int("trades", ledger.Trades()).Float64("pnl", pnl).Msg("session summary")
			return
		case tk := <-ticks:
			eng.OnTick(tk)
		}
	}
}
