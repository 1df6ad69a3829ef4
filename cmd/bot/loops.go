package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/engine"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/feed"
)

// runOvernightLoop seeds overnight-bar history on startup, then keeps polling
// so the 03:00 ET close is picked up shortly after it lands. The classifier
// ignores bars for days it has already seen.
func runOvernightLoop(ctx context.Context, rest *feed.RESTClient, eng *engine.Engine, symbol string, log zerolog.Logger) {
	seed := func(days int) {
		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		bars, err := rest.OvernightBars(fetchCtx, symbol, days)
		if err != nil {
			log.Warn().Err(err).Msg("overnight bar fetch failed")
			return
		}
		for _, b := range bars {
			eng.OnOvernightBar(b)
		}
	}
	seed(5)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seed(1)
		}
	}
}

// runChainLoop refreshes the 0DTE options chain on a fixed cadence during
// market hours so contract selection and position marks stay current.
func runChainLoop(ctx context.Context, rest *feed.RESTClient, eng *engine.Engine, symbol string, refreshSecs int, log zerolog.Logger) {
	if refreshSecs <= 0 {
		refreshSecs = 15
	}
	ticker := time.NewTicker(time.Duration(refreshSecs) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			snap, err := rest.ChainSnapshot(fetchCtx, symbol)
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("chain snapshot fetch failed")
				continue
			}
			eng.OnChain(snap)
		}
	}
}
