package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Sina is a per-symbol quote source: cheaper than Tencent's whole-market
// snapshot for a single lookup but it can't batch, so it's registered
// only for QuoteFetcher, not BatchQuoteFetcher.
type Sina struct {
	client *http.Client
	log    zerolog.Logger
}

// NewSina constructs a Sina fetcher using the given HTTP client.
func NewSina(client *http.Client, log zerolog.Logger) *Sina {
	return &Sina{client: client, log: log.With().Str("source", "sina").Logger()}
}

func (s *Sina) SourceKey() string { return "sina" }

// Quote fetches a single realtime quote from hq.sinajs.cn.
func (s *Sina) Quote(ctx context.Context, sym domain.Symbol) (domain.RealtimeQuote, error) {
	code := sym.SinaCode()
	url := fmt.Sprintf("https://hq.sinajs.cn/list=%s", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RealtimeQuote{}, fmt.Errorf("sina: build request: %w", domain.ErrFatal)
	}
	// Sina requires a plausible Referer or it returns an empty payload.
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.RealtimeQuote{}, fmt.Errorf("sina: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.RealtimeQuote{}, fmt.Errorf("sina: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	line := string(buf[:n])

	quote, ok := parseSinaLine(line)
	if !ok {
		return domain.RealtimeQuote{}, fmt.Errorf("sina: %s: %w", sym.Code, domain.ErrDataMissing)
	}
	quote.Symbol = sym
	quote.Source = s.SourceKey()
	quote.Timestamp = time.Now()
	return quote, nil
}

// parseSinaLine parses `var hq_str_sh600519="贵州茅台,1700.0,...";`.
func parseSinaLine(line string) (domain.RealtimeQuote, bool) {
	start := strings.Index(line, `"`)
	end := strings.LastIndex(line, `"`)
	if start < 0 || end <= start {
		return domain.RealtimeQuote{}, false
	}
	fields := strings.Split(line[start+1:end], ",")
	if len(fields) < 4 {
		return domain.RealtimeQuote{}, false
	}

	var q domain.RealtimeQuote
	q.Name = fields[0]
	prevClose := parseFloat(fieldAt(fields, 2))
	q.Price = parseFloat(fieldAt(fields, 3))
	if prevClose > 0 {
		q.Change = q.Price - prevClose
		q.ChangePercent = q.Change / prevClose * 100
	}
	q.Volume = parseFloat(fieldAt(fields, 8))
	q.Amount = parseFloat(fieldAt(fields, 9))
	return q, true
}
