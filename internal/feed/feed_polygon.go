package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
)

type polygonControl struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

type polygonEvent struct {
	Event  string  `json:"ev"`
	Status string  `json:"status"`
	Symbol string  `json:"sym"`
	Price  float64 `json:"p"`
	Size   float64 `json:"s"`
	Ts     int64   `json:"t"`
}

func (f *Feed) runPolygon(ctx context.Context, out chan<- market.Tick) error {
	if f.symbol == "" {
		return fmt.Errorf("polygon feed requires a symbol")
	}
	if f.apiKey == "" {
		return fmt.Errorf("polygon feed requires an api key")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumePolygonStream(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("polygon feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumePolygonStream(ctx context.Context, out chan<- market.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(polygonControl{Action: "auth", Params: f.apiKey}); err != nil {
		return err
	}
	if err := conn.WriteJSON(polygonControl{Action: "subscribe", Params: "T." + f.symbol}); err != nil {
		return err
	}

	f.log.Info().Str("provider", ProviderPolygon).Str("symbol", f.symbol).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("polygon ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var events []polygonEvent
		if err := json.Unmarshal(message, &events); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode polygon message")
			continue
		}

		for _, ev := range events {
			if ev.Event == "status" {
				if ev.Status == "auth_failed" {
					return fmt.Errorf("polygon auth failed")
				}
				continue
			}
			if ev.Event != "T" || ev.Symbol != f.symbol || ev.Price <= 0 {
				continue
			}
			tick := market.Tick{
				Symbol: ev.Symbol,
				Price:  ev.Price,
				Volume: ev.Size,
				Ts:     time.UnixMilli(ev.Ts),
			}
			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
