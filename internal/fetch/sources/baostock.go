package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Baostock is a session-based source: the upstream API requires an
// explicit login before any query and a logout afterward. Unlike the
// other fetchers, which are stateless per-call, Baostock serializes
// access behind a session mutex so login/query/logout always happen as
// one atomic bracket — a second goroutine's Daily call waits for the
// first's logout rather than interleaving with its session.
type Baostock struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger

	sessionMu sync.Mutex
}

// NewBaostock constructs a Baostock fetcher.
func NewBaostock(client *http.Client, log zerolog.Logger) *Baostock {
	return &Baostock{
		client:  client,
		baseURL: "https://www.baostock.com/api",
		log:     log.With().Str("source", "baostock").Logger(),
	}
}

func (b *Baostock) SourceKey() string { return "baostock" }

// withSession brackets fn with a login and a guaranteed logout, even if
// fn panics (the deferred logout still runs, then the panic propagates).
func (b *Baostock) withSession(ctx context.Context, fn func(sessionID string) error) error {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()

	sessionID, err := b.login(ctx)
	if err != nil {
		return fmt.Errorf("baostock: login: %w", err)
	}
	defer func() {
		if logoutErr := b.logout(ctx, sessionID); logoutErr != nil {
			b.log.Warn().Err(logoutErr).Msg("baostock: logout failed, session may leak")
		}
	}()

	return fn(sessionID)
}

func (b *Baostock) login(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/login", nil)
	if err != nil {
		return "", fmt.Errorf("build login request: %w", domain.ErrFatal)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", domain.ErrNormalization)
	}
	return out.SessionID, nil
}

func (b *Baostock) logout(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/logout?session_id="+sessionID, nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", domain.ErrFatal)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()
	return nil
}

// Daily fetches historical daily bars, bracketed by a login/logout pair.
func (b *Baostock) Daily(ctx context.Context, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	switch sym.Market {
	case domain.MarketUS:
		return nil, fmt.Errorf("baostock: 不支持美股: %w", domain.ErrDataMissing)
	case domain.MarketHK, domain.MarketTW:
		return nil, fmt.Errorf("baostock: 仅支持A股: %w", domain.ErrDataMissing)
	}

	var candles []domain.Candle
	err := b.withSession(ctx, func(sessionID string) error {
		c, err := b.queryDaily(ctx, sessionID, sym, lookback)
		if err != nil {
			return err
		}
		candles = c
		return nil
	})
	return candles, err
}

func (b *Baostock) queryDaily(ctx context.Context, sessionID string, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -lookback*2)

	code := sym.BaostockCode()
	url := fmt.Sprintf("%s/query_history_k_data?session_id=%s&code=%s&start=%s&end=%s&frequency=d&adjustflag=2",
		b.baseURL, sessionID, code, start.Format("2006-01-02"), end.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("baostock: build query: %w", domain.ErrFatal)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("baostock: query failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("baostock: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out struct {
		Rows [][]string `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("baostock: decode response: %w", domain.ErrNormalization)
	}
	if len(out.Rows) == 0 {
		return nil, fmt.Errorf("baostock: no rows for %s: %w", sym.Code, domain.ErrDataMissing)
	}

	candles := make([]domain.Candle, 0, len(out.Rows))
	for _, row := range out.Rows {
		// date,open,high,low,close,volume,amount
		if len(row) < 7 {
			continue
		}
		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		c := domain.Candle{
			Date:   date,
			Open:   parseFloat(row[1]),
			High:   parseFloat(row[2]),
			Low:    parseFloat(row[3]),
			Close:  parseFloat(row[4]),
			Volume: parseFloat(row[5]),
			Amount: parseFloat(row[6]),
		}
		if c.Amount == 0 {
			c.Amount = c.Volume * c.Close
		}
		candles = append(candles, c)
	}

	if len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}
	return candles, nil
}

