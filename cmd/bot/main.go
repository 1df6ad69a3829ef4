package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/alert"
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
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

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
			RiskFraction:    cfg.Risk.RiskFraction,
			DailyLossLimit:  cfg.Risk.DailyLossLimit,
			TierMultiplier:  cfg.Risk.TierMultiplier,
			Scale1Threshold: cfg.Risk.Scale1Threshold,
			Scale1Fraction:  cfg.Risk.Scale1Fraction,
			Scale2Threshold: cfg.Risk.Scale2Threshold,
			Scale2Fraction:  cfg.Risk.Scale2Fraction,
		}, log),
		Monitor: exits.NewMonitor(exits.Config{
			TimeStop:           timeStop,
			MaxGivebackPct:     cfg.Risk.MaxGivebackPct,
			TightenGivebackPct: cfg.Risk.TightenGivebackPct,
		}, log),
		Selector: chain.NewSelector(chain.DefaultSpecs(), log),
		Scorer:   strategy.NewScorer(strategy.Config{}, window, log),
		Window:   window,
	}, log)

	if cfg.Journal.Path != "" {
		rec, err := journal.NewJSONLRecorder(cfg.Journal.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Journal.Path).Msg("open journal")
		}
		defer rec.Close()
		eng.AddSink(rec)
	}
	if cfg.Alert.Enabled {
		eng.AddSink(alert.NewClient(cfg.Alert.Endpoint, cfg.Alert.Token, cfg.Alert.UserKey, log))
	}
	var sub broker.Submitter = broker.NewSilent(log)
	if cfg.Broker.Enabled {
		sub = broker.NewTradier(cfg.Broker.BaseURL, cfg.Broker.Token, cfg.Broker.AccountID)
	}
	eng.AddSink(broker.NewExecutor(sub, log))

	rest := feed.NewRESTClient("", cfg.Market.APIKey)
	fd := feed.NewFeed(cfg.Market.Provider, cfg.Market.Symbol, log, feed.WithAPIKey(cfg.Market.APIKey))

	ticks := make(chan market.Tick, 1024)
	go func() {
		if err := fd.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	go runOvernightLoop(ctx, rest, eng, cfg.Market.Symbol, log)
	go runChainLoop(ctx, rest, eng, cfg.Market.Symbol, cfg.Market.ChainRefreshSecs, log)

	log.Info().Str("symbol", cfg.Market.Symbol).Str("provider", cfg.Market.Provider).Msg("bot started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case tk := <-ticks:
			eng.OnTick(tk)
		}
	}
}
