package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const sandboxBase = "https://sandbox.tradier.com"

// Tradier submits option orders through the Tradier brokerage REST API.
type Tradier struct {
	base    string
	token   string
	account string
	http    *http.Client
}

// NewTradier builds a client against the given base URL; empty base targets
// the sandbox environment.
func NewTradier(base, token, account string) *Tradier {
	if base == "" {
		base = sandboxBase
	}
	return &Tradier{
		base:    base,
		token:   token,
		account: account,
		http:    &http.Client{Timeout: 8 * time.Second},
	}
}

type orderResponse struct {
	Order struct {
		ID     int    `json:"id"`
		Status string `json:"status"`
	} `json:"order"`
}

// Submit places a market or limit option order on the configured account.
func (t *Tradier) Submit(ord Order) (string, error) {
	form := url.Values{}
	form.Set("class", "option")
	form.Set("symbol", underlyingOf(ord.Symbol))
	form.Set("option_symbol", ord.Symbol)
	form.Set("side", string(ord.Side))
	form.Set("quantity", strconv.Itoa(ord.Qty))
	form.Set("duration", "day")
	if ord.Price > 0 {
		form.Set("type", "limit")
		form.Set("price", strconv.FormatFloat(ord.Price, 'f', 2, 64))
	} else {
		form.Set("type", "market")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	u := fmt.Sprintf("%s/v1/accounts/%s/orders", t.base, t.account)
	req, err := http.NewRequestWithContext(ctx, "POST", u, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("tradier order status %d", resp.StatusCode)
	}
	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return strconv.Itoa(out.Order.ID), nil
}

// underlyingOf strips the OCC suffix (yymmdd, C/P, strike) from an option
// symbol, leaving the root.
func underlyingOf(occ string) string {
	for i, r := range occ {
		if r >= '0' && r <= '9' {
			return occ[:i]
		}
	}
	return occ
}
