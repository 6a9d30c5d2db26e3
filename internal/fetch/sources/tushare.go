package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Tushare is a token-paid provider: every call requires TUSHARE_TOKEN and
// is subject to a strict per-minute quota enforced by the RateGate the
// caller configures for this source key, not by Tushare itself emitting
// backoff hints the way an HTTP 429 would.
type Tushare struct {
	client *http.Client
	token  string
	log    zerolog.Logger
}

// NewTushare constructs a Tushare fetcher. An empty token makes every
// call fail with domain.ErrConfiguration, so a deployment that doesn't
// configure TUSHARE_TOKEN simply never succeeds through this source
// without needing a separate "is configured" guard at call sites.
func NewTushare(client *http.Client, token string, log zerolog.Logger) *Tushare {
	return &Tushare{client: client, token: token, log: log.With().Str("source", "tushare").Logger()}
}

func (t *Tushare) SourceKey() string { return "tushare" }

type tushareRequest struct {
	APIName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params"`
	Fields  string                 `json:"fields"`
}

type tushareResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string        `json:"fields"`
		Items  [][]interface{} `json:"items"`
	} `json:"data"`
}

func (t *Tushare) call(ctx context.Context, apiName string, params map[string]interface{}, fields string) (*tushareResponse, error) {
	if t.token == "" {
		return nil, fmt.Errorf("tushare: TUSHARE_TOKEN not configured: %w", domain.ErrConfiguration)
	}

	reqBody := tushareRequest{APIName: apiName, Token: t.token, Params: params, Fields: fields}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("tushare: encode request: %w", domain.ErrFatal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tushare.pro", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tushare: build request: %w", domain.ErrFatal)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tushare: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("tushare: rate limited: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tushare: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out tushareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tushare: decode response: %w", domain.ErrNormalization)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("tushare: api error %d: %s: %w", out.Code, out.Msg, domain.ErrDataMissing)
	}
	return &out, nil
}

// Daily fetches historical daily bars via Tushare's `daily` API.
func (t *Tushare) Daily(ctx context.Context, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	switch sym.Market {
	case domain.MarketUS:
		return nil, fmt.Errorf("tushare: 不支持美股: %w", domain.ErrDataMissing)
	case domain.MarketHK, domain.MarketTW:
		return nil, fmt.Errorf("tushare: 仅支持A股: %w", domain.ErrDataMissing)
	}

	tsCode := sym.TushareCode()
	end := time.Now()
	start := end.AddDate(0, 0, -lookback*2) // pad for weekends/holidays

	resp, err := t.call(ctx, "daily", map[string]interface{}{
		"ts_code":    tsCode,
		"start_date": start.Format("20060102"),
		"end_date":   end.Format("20060102"),
	}, "trade_date,open,high,low,close,vol,amount")
	if err != nil {
		return nil, err
	}

	idx := fieldIndex(resp.Data.Fields)
	candles := make([]domain.Candle, 0, len(resp.Data.Items))
	for _, row := range resp.Data.Items {
		date, err := time.Parse("20060102", asString(row[idx["trade_date"]]))
		if err != nil {
			continue
		}
		c := domain.Candle{
			Date:  date,
			Open:  asFloat(row[idx["open"]]),
			High:  asFloat(row[idx["high"]]),
			Low:   asFloat(row[idx["low"]]),
			Close: asFloat(row[idx["close"]]),
			// Tushare reports volume in lots of 100 shares and amount in
			// thousands of CNY; normalize both to raw units here so every
			// source agrees on Candle's unit convention.
			Volume: asFloat(row[idx["vol"]]) * 100,
			Amount: asFloat(row[idx["amount"]]) * 1000,
		}
		if c.Amount == 0 {
			c.Amount = c.Volume * c.Close
		}
		candles = append(candles, c)
	}

	// Tushare returns newest-first; normalize to chronological order like
	// every other source.
	reverseCandles(candles)

	if len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}
	return candles, nil
}

func reverseCandles(c []domain.Candle) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

func fieldIndex(fields []string) map[string]int {
	m := make(map[string]int, len(fields))
	for i, f := range fields {
		m[f] = i
	}
	return m
}

func asFloat(v interface{}) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return f
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
