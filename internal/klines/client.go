package klines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUpstream marks a failed call to the klines endpoint.
var ErrUpstream = errors.New("binance_down")

// historyLimit is the number of candles requested upstream.
const historyLimit = 500

// Candle is one OHLC candle; Time is the open time in unix seconds.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Client fetches candles from a Binance-compatible klines endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a klines client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "klines_client"),
	}
}

// History returns candles for symbol at interval. Sub-minute intervals
// (5s/10s/15s/30s) are derived from 1m candles.
func (c *Client) History(ctx context.Context, symbol, interval string) ([]Candle, error) {
	upstream, subSec, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	candles, err := c.fetch(ctx, symbol, upstream)
	if err != nil {
		return nil, err
	}

	if subSec == 0 {
		return candles, nil
	}
	return Split(candles, subSec), nil
}

func (c *Client) fetch(ctx context.Context, symbol, interval string) ([]Candle, error) {
	startTime := time.Now()

	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol))
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(historyLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	candles := make([]Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrUpstream, i, err)
		}
		candles = append(candles, candle)
	}

	c.logger.Debug("klines_fetched",
		"symbol", symbol,
		"interval", interval,
		"candles", len(candles),
		"latency_ms", time.Since(startTime).Milliseconds(),
	)

	return candles, nil
}

// parseRow decodes [openTimeMs, "open", "high", "low", "close", ...].
func parseRow(row []json.RawMessage) (Candle, error) {
	if len(row) < 5 {
		return Candle{}, fmt.Errorf("expected at least 5 fields, got %d", len(row))
	}

	var openTimeMs int64
	if err := json.Unmarshal(row[0], &openTimeMs); err != nil {
		return Candle{}, fmt.Errorf("open time: %w", err)
	}

	prices := make([]float64, 4)
	for i := range prices {
		var raw string
		if err := json.Unmarshal(row[i+1], &raw); err != nil {
			return Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		prices[i] = d.InexactFloat64()
	}

	return Candle{
		Time:  openTimeMs / 1000,
		Open:  prices[0],
		High:  prices[1],
		Low:   prices[2],
		Close: prices[3],
	}, nil
}
