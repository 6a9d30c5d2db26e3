// Package sources implements the concrete data-provider fetchers: tencent
// (snapshot-oriented), sina (per-symbol), tushare (token-paid), baostock
// (session-based), and yfinance (foreign-market).
package sources

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Tencent fetches realtime quotes for every requested code from
// qt.gtimg.cn in a single call (only the listed codes, not the whole
// market), making it the cheapest source for batch quote prefetch and
// the backing source for MarketReview indices.
type Tencent struct {
	client *http.Client
	log    zerolog.Logger
}

// NewTencent constructs a Tencent fetcher using the given HTTP client.
func NewTencent(client *http.Client, log zerolog.Logger) *Tencent {
	return &Tencent{client: client, log: log.With().Str("source", "tencent").Logger()}
}

func (t *Tencent) SourceKey() string { return "tencent" }

// BatchQuotes fetches a realtime snapshot for every symbol in one HTTP
// call, the shape this API is built for.
func (t *Tencent) BatchQuotes(ctx context.Context, syms []domain.Symbol) (map[string]domain.RealtimeQuote, error) {
	if len(syms) == 0 {
		return map[string]domain.RealtimeQuote{}, nil
	}

	codes := make([]string, len(syms))
	byCode := make(map[string]domain.Symbol, len(syms))
	for i, s := range syms {
		tc := s.TencentCode()
		codes[i] = tc
		byCode[tc] = s
	}

	url := fmt.Sprintf("https://qt.gtimg.cn/q=%s", strings.Join(codes, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("tencent: build request: %w", domain.ErrFatal)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tencent: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tencent: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	result := make(map[string]domain.RealtimeQuote, len(syms))
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*64), 1024*64)
	for scanner.Scan() {
		line := scanner.Text()
		code, quote, ok := parseTencentLine(line)
		if !ok {
			continue
		}
		if sym, known := byCode[code]; known {
			quote.Symbol = sym
			quote.Source = t.SourceKey()
			result[sym.Code] = quote
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("tencent: no quotes parsed: %w", domain.ErrDataMissing)
	}
	return result, nil
}

// Quote fetches a single symbol's quote by delegating to BatchQuotes.
func (t *Tencent) Quote(ctx context.Context, sym domain.Symbol) (domain.RealtimeQuote, error) {
	quotes, err := t.BatchQuotes(ctx, []domain.Symbol{sym})
	if err != nil {
		return domain.RealtimeQuote{}, err
	}
	q, ok := quotes[sym.Code]
	if !ok {
		return domain.RealtimeQuote{}, fmt.Errorf("tencent: %s not in snapshot: %w", sym.Code, domain.ErrDataMissing)
	}
	return q, nil
}

// parseTencentLine parses one `v_sh600519="1~贵州茅台~600519~...";` line
// into its exchange-prefixed code and the realtime quote fields.
func parseTencentLine(line string) (code string, quote domain.RealtimeQuote, ok bool) {
	eq := strings.Index(line, "=")
	if eq < 0 || !strings.HasPrefix(line, "v_") {
		return "", domain.RealtimeQuote{}, false
	}
	code = strings.TrimPrefix(line[:eq], "v_")

	payload := strings.Trim(line[eq+1:], `";`+"\n")
	fields := strings.Split(payload, "~")
	if len(fields) < 36 {
		return "", domain.RealtimeQuote{}, false
	}

	quote.Name = fields[1]
	quote.Price = parseFloat(fields[3])
	quote.Change = parseFloat(fields[31])
	quote.ChangePercent = parseFloat(fields[32])
	quote.Volume = parseFloat(fieldAt(fields, 36))
	quote.Timestamp = time.Now()
	return code, quote, true
}

func fieldAt(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
