// Package fetch defines the data-provider contracts and the priority
// failover manager that walks them. Individual providers implement
// whichever capability interfaces they actually support — the set of
// concrete sources is open-ended, new ones are added by implementing one
// or more of these interfaces, not by touching the manager.
package fetch

import (
	"context"
	"time"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Source identifies a fetcher implementation for logging, rate limiting,
// and circuit breaking.
type Source interface {
	SourceKey() string
}

// DailyFetcher retrieves historical daily candles for a symbol.
type DailyFetcher interface {
	Source
	Daily(ctx context.Context, sym domain.Symbol, lookback int) ([]domain.Candle, error)
}

// QuoteFetcher retrieves a single realtime quote for a symbol.
type QuoteFetcher interface {
	Source
	Quote(ctx context.Context, sym domain.Symbol) (domain.RealtimeQuote, error)
}

// BatchQuoteFetcher retrieves realtime quotes for many symbols in one
// call — snapshot-oriented sources implement this to avoid N round trips.
type BatchQuoteFetcher interface {
	Source
	BatchQuotes(ctx context.Context, syms []domain.Symbol) (map[string]domain.RealtimeQuote, error)
}

// ForeignQuoteFetcher marks a QuoteFetcher that serves foreign (US/TW)
// symbols. US quotes are routed exclusively to sources carrying this
// marker; domestic snapshot endpoints return stale or garbled data for
// them.
type ForeignQuoteFetcher interface {
	QuoteFetcher
	ForeignMarkets()
}

// ChipsFetcher retrieves the chip (holding-cost) distribution for a
// symbol. Only a subset of sources carry this data.
type ChipsFetcher interface {
	Source
	Chips(ctx context.Context, sym domain.Symbol) (domain.ChipDistribution, error)
}

// NameFetcher resolves a symbol's human-readable display name.
type NameFetcher interface {
	Source
	Name(ctx context.Context, sym domain.Symbol) (string, error)
}

// BatchNameFetcher resolves display names for many symbols in one call.
type BatchNameFetcher interface {
	Source
	BatchNames(ctx context.Context, syms []domain.Symbol) (map[string]string, error)
}

// MarketAggregatesFetcher retrieves market-wide indices, sector moves, and
// breadth statistics for the MarketReview component.
type MarketAggregatesFetcher interface {
	Source
	Indices(ctx context.Context) ([]domain.IndexQuote, error)
	Sectors(ctx context.Context) ([]domain.SectorPerformance, error)
	MarketStats(ctx context.Context) (domain.MarketStats, error)
}

// defaultFetchTimeout bounds any single provider call that doesn't
// already carry a deadline from its caller.
const defaultFetchTimeout = 15 * time.Second

// withTimeout returns a derived context bounded by defaultFetchTimeout
// when ctx has no deadline of its own yet.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultFetchTimeout)
}
