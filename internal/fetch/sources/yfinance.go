package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Yfinance is the foreign-market source: it is only ever routed US and TW
// symbols, and every candle it returns is already split/dividend
// adjusted, so Amount is always reconstructed from Volume*Close since the
// upstream API reports raw traded value only inconsistently.
type Yfinance struct {
	client *http.Client
	log    zerolog.Logger
}

// NewYfinance constructs a Yfinance fetcher.
func NewYfinance(client *http.Client, log zerolog.Logger) *Yfinance {
	return &Yfinance{client: client, log: log.With().Str("source", "yfinance").Logger()}
}

func (y *Yfinance) SourceKey() string { return "yfinance" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Adjclose []struct {
					Adjclose []float64 `json:"adjclose"`
				} `json:"adjclose"`
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// Daily fetches adjusted OHLC history from Yahoo's chart API.
func (y *Yfinance) Daily(ctx context.Context, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	if sym.Market != domain.MarketUS && sym.Market != domain.MarketTW {
		return nil, fmt.Errorf("yfinance: foreign markets only: %w", domain.ErrDataMissing)
	}

	yfSym := sym.YahooCode()
	rangeParam := "1y"
	if lookback <= 30 {
		rangeParam = "3mo"
	} else if lookback <= 90 {
		rangeParam = "6mo"
	}

	url := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?range=%s&interval=1d", yfSym, rangeParam)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("yfinance: build request: %w", domain.ErrFatal)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yfinance: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("yfinance: rate limited: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yfinance: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("yfinance: decode response: %w", domain.ErrNormalization)
	}
	if out.Chart.Error != nil || len(out.Chart.Result) == 0 {
		return nil, fmt.Errorf("yfinance: %s: %w", sym.Code, domain.ErrDataMissing)
	}

	result := out.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yfinance: %s: no quote series: %w", sym.Code, domain.ErrDataMissing)
	}
	q := result.Indicators.Quote[0]

	candles := make([]domain.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) {
			break
		}
		close := sliceAt(q.Close, i)
		if close == 0 {
			continue // market-closed gaps come back as zeroed entries
		}
		c := domain.Candle{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   sliceAt(q.Open, i),
			High:   sliceAt(q.High, i),
			Low:    sliceAt(q.Low, i),
			Close:  close,
			Volume: sliceAt(q.Volume, i),
		}
		// Amount is always reconstructed: Yahoo's chart API does not
		// report turnover value, only volume.
		c.Amount = c.Volume * c.Close
		candles = append(candles, c)
	}

	if len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}
	return candles, nil
}

// ForeignMarkets marks Yfinance as the foreign-market quote source; the
// manager routes US symbols to it exclusively.
func (y *Yfinance) ForeignMarkets() {}

type yahooMetaResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketHigh  float64 `json:"regularMarketDayHigh"`
				RegularMarketLow   float64 `json:"regularMarketDayLow"`
				RegularMarketVol   float64 `json:"regularMarketVolume"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// Quote fetches a realtime quote from the chart API's metadata block.
func (y *Yfinance) Quote(ctx context.Context, sym domain.Symbol) (domain.RealtimeQuote, error) {
	if sym.Market != domain.MarketUS && sym.Market != domain.MarketTW {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: foreign markets only: %w", domain.ErrDataMissing)
	}

	yfSym := sym.YahooCode()
	url := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?range=1d&interval=1d", yfSym)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: build request: %w", domain.ErrFatal)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := y.client.Do(req)
	if err != nil {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: rate limited: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out yahooMetaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: decode response: %w", domain.ErrNormalization)
	}
	if out.Chart.Error != nil || len(out.Chart.Result) == 0 {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: %s: %w", sym.Code, domain.ErrDataMissing)
	}

	meta := out.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return domain.RealtimeQuote{}, fmt.Errorf("yfinance: %s: no price: %w", sym.Code, domain.ErrDataMissing)
	}

	q := domain.RealtimeQuote{
		Symbol:     sym,
		Name:       meta.Symbol,
		Price:      meta.RegularMarketPrice,
		High:       meta.RegularMarketHigh,
		Low:        meta.RegularMarketLow,
		Volume:     meta.RegularMarketVol,
		PreClose:   meta.PreviousClose,
		High52Week: meta.FiftyTwoWeekHigh,
		Low52Week:  meta.FiftyTwoWeekLow,
		Timestamp:  time.Now(),
		Source:     y.SourceKey(),
	}
	if q.PreClose > 0 {
		q.Change = q.Price - q.PreClose
		q.ChangePercent = q.Change / q.PreClose * 100
	}
	return q, nil
}

func sliceAt(s []float64, i int) float64 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}
