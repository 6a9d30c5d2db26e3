// Package marketreview aggregates market-wide indices, breadth statistics,
// and sector rankings into a daily narrative review.
package marketreview

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Aggregates is the slice of FetcherManager the review reads market-wide
// data through.
type Aggregates interface {
	Indices(ctx context.Context) ([]domain.IndexQuote, error)
	Sectors(ctx context.Context) ([]domain.SectorPerformance, error)
	MarketStats(ctx context.Context) (domain.MarketStats, error)
}

// Narrator turns the aggregated data prompt into a prose review. The LLM
// client behind it is out of scope here; when it errors or none is
// configured the review falls back to the data-only template.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) (string, error)
}

// Store persists the finished review.
type Store interface {
	InsertMarketReview(ctx context.Context, asOf time.Time, body string) error
}

// Notifier delivers the finished review markdown.
type Notifier interface {
	NotifyMarketReview(ctx context.Context, markdown string) error
}

// Review runs the optional market-wide second phase after per-symbol
// analysis. It is independent of per-symbol errors and honors a global
// start delay so it never piles onto upstream APIs right after the batch.
type Review struct {
	market   Aggregates
	narrator Narrator
	store    Store
	notifier Notifier
	delay    time.Duration
	log      zerolog.Logger
}

// New constructs a Review. narrator, store, and notifier may each be nil;
// the corresponding step is skipped.
func New(market Aggregates, narrator Narrator, store Store, notifier Notifier, delay time.Duration, log zerolog.Logger) *Review {
	return &Review{
		market:   market,
		narrator: narrator,
		store:    store,
		notifier: notifier,
		delay:    delay,
		log:      log.With().Str("component", "market-review").Logger(),
	}
}

// Run gathers aggregates, synthesizes the review body, persists it, and
// notifies. Each gather step degrades independently; the review only
// fails outright when no aggregate of any kind could be fetched.
func (r *Review) Run(ctx context.Context) (string, error) {
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.delay):
		}
	}

	var (
		indices []domain.IndexQuote
		sectors []domain.SectorPerformance
		stats   *domain.MarketStats
	)

	if idx, err := r.market.Indices(ctx); err != nil {
		r.log.Warn().Err(err).Msg("indices unavailable for market review")
	} else {
		indices = idx
	}
	if sec, err := r.market.Sectors(ctx); err != nil {
		r.log.Warn().Err(err).Msg("sectors unavailable for market review")
	} else {
		sectors = sec
	}
	if st, err := r.market.MarketStats(ctx); err != nil {
		r.log.Warn().Err(err).Msg("market stats unavailable for market review")
	} else {
		stats = &st
	}

	if len(indices) == 0 && len(sectors) == 0 && stats == nil {
		return "", fmt.Errorf("market review: no aggregate data available")
	}

	dataSection := renderData(indices, sectors, stats)

	body := dataSection
	if r.narrator != nil {
		narrative, err := r.narrator.Narrate(ctx, dataSection)
		if err != nil {
			r.log.Warn().Err(err).Msg("narrator failed, emitting data-only review")
		} else if narrative != "" {
			body = dataSection + "\n### 点评\n\n" + narrative + "\n"
		}
	}

	if r.store != nil {
		if err := r.store.InsertMarketReview(ctx, time.Now(), body); err != nil {
			r.log.Error().Err(err).Msg("failed to persist market review")
		}
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyMarketReview(ctx, body); err != nil {
			r.log.Error().Err(err).Msg("failed to notify market review")
		}
	}

	return body, nil
}

// renderData formats the gathered aggregates as the markdown data section
// that both the template-only review and the narrator prompt share.
func renderData(indices []domain.IndexQuote, sectors []domain.SectorPerformance, stats *domain.MarketStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 市场回顾 %s\n\n", time.Now().Format("2006-01-02"))

	if len(indices) > 0 {
		b.WriteString("### 指数\n\n")
		for _, idx := range indices {
			fmt.Fprintf(&b, "- %s: %.2f (%+.2f%%)\n", idx.Name, idx.Price, idx.ChangePercent)
		}
		b.WriteString("\n")
	}

	if stats != nil {
		b.WriteString("### 市场概况\n\n")
		fmt.Fprintf(&b, "- 上涨 %d / 下跌 %d\n", stats.AdvancingCount, stats.DecliningCount)
		fmt.Fprintf(&b, "- 涨停 %d / 跌停 %d\n", stats.LimitUpCount, stats.LimitDownCount)
		if stats.TotalTurnover > 0 {
			fmt.Fprintf(&b, "- 成交额 %.0f 亿\n", stats.TotalTurnover/1e8)
		}
		b.WriteString("\n")
	}

	if len(sectors) > 0 {
		ranked := make([]domain.SectorPerformance, len(sectors))
		copy(ranked, sectors)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].ChangePercent > ranked[j].ChangePercent
		})

		changes := make([]float64, len(ranked))
		for i, s := range ranked {
			changes[i] = s.ChangePercent
		}
		mean := stat.Mean(changes, nil)

		b.WriteString("### 板块\n\n")
		fmt.Fprintf(&b, "板块平均涨跌 %+.2f%%。\n\n", mean)
		for i, s := range ranked {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s %+.2f%%", s.Name, s.ChangePercent)
			if s.LeaderSymbol != "" {
				fmt.Fprintf(&b, "（领涨 %s %+.2f%%）", s.LeaderSymbol, s.LeaderChange)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
