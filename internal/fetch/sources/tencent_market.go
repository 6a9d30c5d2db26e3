package sources

import (
	"context"
	"fmt"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// indexCodes are the headline indices Tencent's snapshot endpoint is
// queried for when building the market review.
var indexCodes = []domain.Symbol{
	{Code: "sh000001", Market: domain.MarketIndex, Exchange: domain.ExchangeSH}, // Shanghai Composite
	{Code: "sz399001", Market: domain.MarketIndex, Exchange: domain.ExchangeSZ}, // Shenzhen Component
	{Code: "sz399006", Market: domain.MarketIndex, Exchange: domain.ExchangeSZ}, // ChiNext
}

// Indices fetches the headline market indices via the same snapshot
// endpoint used for batch quotes.
func (t *Tencent) Indices(ctx context.Context) ([]domain.IndexQuote, error) {
	quotes, err := t.BatchQuotes(ctx, indexCodes)
	if err != nil {
		return nil, fmt.Errorf("tencent: indices: %w", err)
	}

	out := make([]domain.IndexQuote, 0, len(indexCodes))
	for _, sym := range indexCodes {
		q, ok := quotes[sym.Code]
		if !ok {
			continue
		}
		out = append(out, domain.IndexQuote{
			Name:          q.Name,
			Price:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("tencent: no indices parsed: %w", domain.ErrDataMissing)
	}
	return out, nil
}

// Sectors is not carried by the lightweight gtimg snapshot endpoint;
// Tencent reports it as unavailable so FetcherManager falls through to
// whatever other MarketAggregatesFetcher is registered.
func (t *Tencent) Sectors(ctx context.Context) ([]domain.SectorPerformance, error) {
	return nil, fmt.Errorf("tencent: sector breakdown not supported: %w", domain.ErrDataMissing)
}

// MarketStats is likewise not carried by the snapshot endpoint.
func (t *Tencent) MarketStats(ctx context.Context) (domain.MarketStats, error) {
	return domain.MarketStats{}, fmt.Errorf("tencent: market stats not supported: %w", domain.ErrDataMissing)
}

// Name resolves a display name via the snapshot endpoint.
func (t *Tencent) Name(ctx context.Context, sym domain.Symbol) (string, error) {
	q, err := t.Quote(ctx, sym)
	if err != nil {
		return "", err
	}
	return q.Name, nil
}

// BatchNames resolves display names for many symbols via one snapshot
// call.
func (t *Tencent) BatchNames(ctx context.Context, syms []domain.Symbol) (map[string]string, error) {
	quotes, err := t.BatchQuotes(ctx, syms)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(quotes))
	for code, q := range quotes {
		out[code] = q.Name
	}
	return out, nil
}
