// Package alert pushes strategy events to a phone via the Pushover API.
package alert

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/event"
)

const defaultBase = "https://api.pushover.net"

// Client delivers formatted notifications. A client without credentials is
// a no-op sink, which keeps wiring uniform in paper mode.
type Client struct {
	base  string
	token string
	user  string
	http  *http.Client
	log   zerolog.Logger
}

// NewClient builds a Pushover client. Empty token or user disables delivery.
func NewClient(base, token, user string, log zerolog.Logger) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		base:  base,
		token: token,
		user:  user,
		http:  &http.Client{Timeout: 8 * time.Second},
		log:   log,
	}
}

// Enabled reports whether credentials are present.
func (c *Client) Enabled() bool { return c.token != "" && c.user != "" }

// Publish formats the event and delivers it. Delivery failures are logged
// and returned but never block the trading loop.
func (c *Client) Publish(ev event.Event) error {
	if !c.Enabled() {
		return nil
	}
	title, msg := Format(ev)
	if msg == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := c.send(ctx, title, msg); err != nil {
		c.log.Warn().Err(err).Str("type", string(ev.Kind())).Msg("alert delivery failed")
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, title, msg string) error {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("user", c.user)
	form.Set("title", title)
	form.Set("message", msg)

	req, err := http.NewRequestWithContext(ctx, "POST", c.base+"/1/messages.json", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("pushover status %d", resp.StatusCode)
	}
	return nil
}

// Format renders an event as a short notification title and body.
func Format(ev event.Event) (title, msg string) {
	switch v := ev.(type) {
	case event.BiasEvent:
		title = fmt.Sprintf("%s bias: %s", v.Symbol, strings.ToUpper(v.Direction))
		msg = fmt.Sprintf("Overnight %s bar. Confidence %.0f%%. Triggers %.2f / %.2f.",
			v.BarType, v.Confidence*100, v.TriggerHigh, v.TriggerLow)
	case event.EntryEvent:
		title = fmt.Sprintf("%s entry: %s", v.Symbol, strings.ToUpper(v.Direction))
		msg = fmt.Sprintf("%d x %s @ %.2f. Underlying %.2f broke %.2f (VWAP %.2f, EMA20 %.2f). Confidence %.0f%%.",
			v.Contracts, v.Contract, v.OptionPrice, v.EntryPrice, v.TriggerLevel, v.VWAP, v.EMA20, v.Confidence*100)
	case event.ScaleEvent:
		title = fmt.Sprintf("%s scale-out", v.Symbol)
		msg = fmt.Sprintf("Sold %d (%s) at +%.1f%%, %d remaining.",
			v.ContractsSold, v.Step, v.PnLPercent, v.Remaining)
	case event.ExitEvent:
		title = fmt.Sprintf("%s exit", v.Symbol)
		msg = fmt.Sprintf("Closed: %s. P&L %+.2f.", v.Reason, v.FinalPnL)
	}
	return title, msg
}
