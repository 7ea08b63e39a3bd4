package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	ErrNoData            = errors.New("no market data")
)

// SupportedCoins is the ordered list the chat offers as quick replies.
var SupportedCoins = []string{"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "DOGE", "AVAX"}

type Interval string

const (
	Hourly Interval = "1h"
	Daily  Interval = "1d"
)

// IsSupported reports whether symbol (upper case) is a listed coin.
func IsSupported(symbol string) bool {
	for _, c := range SupportedCoins {
		if c == symbol {
			return true
		}
	}
	return false
}

func pairFor(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !IsSupported(s) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
	}
	return s + "USDT", nil
}

// BinanceClient reads public spot market data and converts USDT quotes into
// rupees with a fixed rate.
type BinanceClient struct {
	httpClient *http.Client
	baseAPI    string
	usdToINR   float64
}

func NewBinanceClient(baseAPI string, usdToINR float64) *BinanceClient {
	return &BinanceClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseAPI:    strings.TrimRight(baseAPI, "/"),
		usdToINR:   usdToINR,
	}
}

// ---- Helpers ----

func (c *BinanceClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseAPI + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("binance api %s failed: %s", path, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ---- Implementations ----

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Price returns the latest trade price of symbol in INR.
func (c *BinanceClient) Price(ctx context.Context, symbol string) (float64, error) {
	pair, err := pairFor(symbol)
	if err != nil {
		return 0, err
	}
	var tp tickerPrice
	if err := c.getJSON(ctx, "/api/v3/ticker/price", url.Values{"symbol": {pair}}, &tp); err != nil {
		return 0, err
	}
	usd, err := strconv.ParseFloat(tp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ticker price %q: %w", tp.Price, err)
	}
	return usd * c.usdToINR, nil
}

// Closes returns candle close prices in INR, oldest first: the last 30 days
// for Daily and the last 24 hours for Hourly.
func (c *BinanceClient) Closes(ctx context.Context, symbol string, interval Interval) ([]float64, error) {
	pair, err := pairFor(symbol)
	if err != nil {
		return nil, err
	}
	limit := 24
	if interval == Daily {
		limit = 30
	}
	q := url.Values{}
	q.Set("symbol", pair)
	q.Set("interval", string(interval))
	q.Set("limit", strconv.Itoa(limit))

	// Each kline is a positional array; index 4 is the close price.
	var raw [][]json.RawMessage
	if err := c.getJSON(ctx, "/api/v3/klines", q, &raw); err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(raw))
	for i, k := range raw {
		if len(k) < 5 {
			return nil, fmt.Errorf("kline %d: expected at least 5 fields, got %d", i, len(k))
		}
		var s string
		if err := json.Unmarshal(k[4], &s); err != nil {
			return nil, fmt.Errorf("kline %d close: %w", i, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("kline %d close %q: %w", i, s, err)
		}
		closes = append(closes, v*c.usdToINR)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, pair)
	}
	return closes, nil
}
