package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/util"
)

const defaultPolygonREST = "https://api.polygon.io"

// RESTClient pulls overnight bars and options chains from the Polygon REST API.
type RESTClient struct {
	base   string
	apiKey string
	http   *http.Client
}

// NewRESTClient builds a client; empty base targets the production API.
func NewRESTClient(base, apiKey string) *RESTClient {
	if base == "" {
		base = defaultPolygonREST
	}
	return &RESTClient{
		base:   base,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

type aggsResponse struct {
	Results []struct {
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		Ts     int64   `json:"t"` // window start, ms
	} `json:"results"`
}

// OvernightBars fetches the most recent completed 12-hour bars in ascending
// order, enough to seed classification after a restart.
func (c *RESTClient) OvernightBars(ctx context.Context, symbol string, days int) ([]market.Bar, error) {
	if days < 1 {
		days = 3
	}
	now := time.Now()
	from := now.AddDate(0, 0, -days-1)
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/12/hour/%s/%s?adjusted=true&sort=asc&limit=%d&apiKey=%s",
		c.base, symbol, from.Format("2006-01-02"), now.Format("2006-01-02"), days*2+2, url.QueryEscape(c.apiKey))

	var out aggsResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	bars := make([]market.Bar, 0, len(out.Results))
	for _, r := range out.Results {
		start := time.UnixMilli(r.Ts)
		end := start.Add(12 * time.Hour)
		if end.After(now) {
			continue // still forming
		}
		bars = append(bars, market.Bar{
			Symbol: symbol,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
			Start:  start,
			End:    end,
		})
	}
	return bars, nil
}

type chainResponse struct {
	Results []struct {
		Details struct {
			Ticker       string  `json:"ticker"`
			Strike       float64 `json:"strike_price"`
			ContractType string  `json:"contract_type"`
			Expiration   string  `json:"expiration_date"`
		} `json:"details"`
		Greeks struct {
			Delta float64 `json:"delta"`
		} `json:"greeks"`
		LastQuote struct {
			Bid float64 `json:"bid"`
			Ask float64 `json:"ask"`
		} `json:"last_quote"`
		Day struct {
			Volume float64 `json:"volume"`
		} `json:"day"`
		OpenInterest    float64 `json:"open_interest"`
		UnderlyingAsset struct {
			Price float64 `json:"price"`
		} `json:"underlying_asset"`
	} `json:"results"`
	NextURL string `json:"next_url"`
}

// ChainSnapshot fetches the same-day expiry chain for the symbol.
func (c *RESTClient) ChainSnapshot(ctx context.Context, symbol string) (market.ChainSnapshot, error) {
	now := time.Now()
	expiry := util.TodaysExpiry(now)
	u := fmt.Sprintf("%s/v3/snapshot/options/%s?expiration_date=%s&limit=250&apiKey=%s",
		c.base, symbol, expiry, url.QueryEscape(c.apiKey))

	snap := market.ChainSnapshot{Symbol: symbol, Ts: now}
	for u != "" {
		var out chainResponse
		if err := c.getJSON(ctx, u, &out); err != nil {
			return market.ChainSnapshot{}, err
		}
		for _, r := range out.Results {
			if r.UnderlyingAsset.Price > 0 {
				snap.Underlying = r.UnderlyingAsset.Price
			}
			snap.Quotes = append(snap.Quotes, market.OptionQuote{
				Ticker:       r.Details.Ticker,
				Strike:       r.Details.Strike,
				ContractType: r.Details.ContractType,
				Delta:        r.Greeks.Delta,
				Bid:          r.LastQuote.Bid,
				Ask:          r.LastQuote.Ask,
				Volume:       r.Day.Volume,
				OpenInterest: r.OpenInterest,
				Expiration:   r.Details.Expiration,
			})
		}
		u = out.NextURL
		if u != "" {
			u += "&apiKey=" + url.QueryEscape(c.apiKey)
		}
	}
	if len(snap.Quotes) == 0 {
		return market.ChainSnapshot{}, fmt.Errorf("empty chain for %s exp %s", symbol, expiry)
	}
	return snap, nil
}

func (c *RESTClient) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("polygon status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
