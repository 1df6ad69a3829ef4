// Package feed hosts market data connectors: a Polygon websocket stream for
// underlying trades, REST pulls for overnight bars and options chains, and a
// deterministic stub for tests and offline work.
package feed

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
)

const (
	// ProviderStub emits deterministic synthetic ticks (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderPolygon streams live trades from Polygon websockets.
	ProviderPolygon = "polygon"
)

// Feed represents a pluggable market data stream implementation.
type Feed struct {
	provider string
	symbol   string
	apiKey   string
	wsURL    string
	log      zerolog.Logger
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const defaultPolygonWS = "wss://socket.polygon.io/stocks"

// WithAPIKey injects the Polygon API key.
func WithAPIKey(key string) Option {
	return func(f *Feed) { f.apiKey = key }
}

// WithWSURL overrides the websocket endpoint (tests point this at a local server).
func WithWSURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.wsURL = url
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider, symbol string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: provider,
		symbol:   symbol,
		wsURL:    defaultPolygonWS,
		log:      log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run pushes ticks onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- market.Tick) error {
	switch f.provider {
	case ProviderPolygon:
		return f.runPolygon(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- market.Tick) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	base := 240.0
	i := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			i++
			px := base + math.Sin(float64(i)/40)*1.5
			tick := market.Tick{Symbol: f.symbol, Price: px, Volume: 100, Ts: ts}
			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
