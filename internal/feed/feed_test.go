package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/market"
)

func TestFeedRunStubEmitsTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fd := NewFeed(ProviderStub, "IWM", zerolog.Nop())
	ticks := make(chan market.Tick, 1)

	go func() {
		_ = fd.Run(ctx, ticks)
	}()

	select {
	case tk := <-ticks:
		if tk.Symbol != "IWM" {
			t.Fatalf("unexpected symbol %s", tk.Symbol)
		}
		if tk.Price <= 0 {
			t.Fatal("expected positive price")
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
}

func TestRunPolygonEmitsTrades(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Expect auth then subscribe before sending trades.
		for i := 0; i < 2; i++ {
			var ctl polygonControl
			if err := conn.ReadJSON(&ctl); err != nil {
				t.Errorf("read control: %v", err)
				return
			}
			if i == 0 && ctl.Action != "auth" {
				t.Errorf("first control = %s, want auth", ctl.Action)
			}
		}
		conn.WriteJSON([]polygonEvent{{Event: "status", Status: "auth_success"}})
		conn.WriteJSON([]polygonEvent{{Event: "T", Symbol: "IWM", Price: 241.25, Size: 100, Ts: time.Now().UnixMilli()}})
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	fd := NewFeed(ProviderPolygon, "IWM", zerolog.Nop(), WithAPIKey("key"), WithWSURL(wsURL))

	ticks := make(chan market.Tick, 1)
	go func() {
		_ = fd.Run(ctx, ticks)
	}()

	select {
	case tk := <-ticks:
		if tk.Symbol != "IWM" || tk.Price != 241.25 || tk.Volume != 100 {
			t.Fatalf("tick = %+v", tk)
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade")
	}
}

func TestRunPolygonRequiresCredentials(t *testing.T) {
	ctx := context.Background()
	ticks := make(chan market.Tick, 1)

	fd := NewFeed(ProviderPolygon, "", zerolog.Nop(), WithAPIKey("key"))
	if err := fd.Run(ctx, ticks); err == nil {
		t.Fatal("missing symbol accepted")
	}
	fd = NewFeed(ProviderPolygon, "IWM", zerolog.Nop())
	if err := fd.Run(ctx, ticks); err == nil {
		t.Fatal("missing api key accepted")
	}
}

func TestOvernightBarsSkipsFormingBar(t *testing.T) {
	now := time.Now()
	complete := now.Add(-13 * time.Hour).UnixMilli()
	forming := now.Add(-time.Hour).UnixMilli()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v2/aggs/ticker/IWM/range/12/hour/") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		body := `{"results":[` +
			`{"o":239.0,"h":240.8,"l":239.5,"c":240.1,"v":1000000,"t":` + itoa(complete) + `},` +
			`{"o":240.3,"h":241.9,"l":240.2,"c":241.2,"v":900000,"t":` + itoa(forming) + `}]}`
		w.Write([]byte(body))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "key")
	bars, err := c.OvernightBars(context.Background(), "IWM", 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("bars = %d, want 1 (forming bar skipped)", len(bars))
	}
	if bars[0].High != 240.8 || bars[0].Low != 239.5 {
		t.Fatalf("bar = %+v", bars[0])
	}
	if !bars[0].End.Equal(bars[0].Start.Add(12 * time.Hour)) {
		t.Fatalf("bar span = %s..%s", bars[0].Start, bars[0].End)
	}
}

func TestChainSnapshotFollowsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "page2" {
			w.Write([]byte(`{"results":[{"details":{"ticker":"P2","strike_price":240,"contract_type":"put","expiration_date":"2026-03-04"},"greeks":{"delta":-0.4},"last_quote":{"bid":2.1,"ask":2.2},"day":{"volume":50},"open_interest":100,"underlying_asset":{"price":241.0}}]}`))
			return
		}
		body := `{"results":[{"details":{"ticker":"P1","strike_price":242,"contract_type":"call","expiration_date":"2026-03-04"},"greeks":{"delta":0.4},"last_quote":{"bid":2.4,"ask":2.5},"day":{"volume":100},"open_interest":200,"underlying_asset":{"price":241.0}}],"next_url":"` + server.URL + `/v3/snapshot/options/IWM?cursor=page2"}`
		w.Write([]byte(body))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "key")
	snap, err := c.ChainSnapshot(context.Background(), "IWM")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Quotes) != 2 {
		t.Fatalf("quotes = %d, want 2", len(snap.Quotes))
	}
	if snap.Underlying != 241.0 {
		t.Fatalf("underlying = %f", snap.Underlying)
	}
	if snap.Quotes[0].Ticker != "P1" || snap.Quotes[1].Ticker != "P2" {
		t.Fatalf("quotes = %+v", snap.Quotes)
	}
}

func TestChainSnapshotErrorsOnEmptyChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "key")
	if _, err := c.ChainSnapshot(context.Background(), "IWM"); err == nil {
		t.Fatal("empty chain accepted")
	}
}

func TestRESTClientSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "bad-key")
	if _, err := c.OvernightBars(context.Background(), "IWM", 3); err == nil {
		t.Fatal("forbidden response accepted")
	}
	var canceled error
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, canceled = c.OvernightBars(ctx, "IWM", 3)
	if !errors.Is(canceled, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", canceled)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
