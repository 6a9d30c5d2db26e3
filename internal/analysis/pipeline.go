package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
	"github.com/gcaaa31928/daily-stock-analysis/internal/fetch"
	"github.com/gcaaa31928/daily-stock-analysis/internal/indicator"
	"github.com/gcaaa31928/daily-stock-analysis/internal/symbol"
)

// historyLookback is roughly three months of trading days.
const historyLookback = 60

// ResultStore is the persistence boundary the pipeline writes completed
// results through. DB itself (internal/storage) is out of scope for this
// subsystem; the pipeline only depends on this narrow interface.
type ResultStore interface {
	InsertAnalysis(ctx context.Context, result *domain.AnalysisResult) error
}

// Notifier is the boundary through which a single-stock report is sent
// immediately when requested. The full NotificationDispatcher also fans
// a batch dashboard out at the end of a run; that path is driven by the
// caller (TaskService/Scheduler), not the pipeline itself.
type Notifier interface {
	NotifySingle(ctx context.Context, result *domain.AnalysisResult) error
}

// Pipeline runs the per-symbol gather -> normalize -> enrich -> ask LLM
// -> persist -> notify sequence, with a bounded worker pool across
// symbols and per-symbol isolation: one symbol's failure never aborts
// its peers.
type Pipeline struct {
	manager   *fetch.Manager
	indicator *indicator.Engine
	analyzer  Analyzer
	search    SearchService
	store     ResultStore
	notifier  Notifier

	// DisableQuote and DisableChips gate the realtime-quote and
	// chip-distribution steps; both default to enabled. Chips are also
	// skipped per-market regardless of the flag (see chipsApplicable).
	DisableQuote bool
	DisableChips bool

	maxWorkers int
	log        zerolog.Logger
}

// New constructs a Pipeline. analyzer/search/store/notifier may be nil-safe
// stand-ins (TemplateAnalyzer, NoopSearch, a no-op store/notifier) when a
// deployment doesn't configure the corresponding external collaborator.
func New(manager *fetch.Manager, engine *indicator.Engine, analyzer Analyzer, search SearchService, store ResultStore, notifier Notifier, maxWorkers int, log zerolog.Logger) *Pipeline {
	if maxWorkers <= 0 {
		maxWorkers = 3
	}
	return &Pipeline{
		manager:    manager,
		indicator:  engine,
		analyzer:   analyzer,
		search:     search,
		store:      store,
		notifier:   notifier,
		maxWorkers: maxWorkers,
		log:        log.With().Str("component", "analysis-pipeline").Logger(),
	}
}

// ProcessBatch runs ProcessSingleStock for every code in codes, up to
// maxWorkers at a time. Results are returned in the same order as codes
// regardless of completion order; a per-symbol failure yields a
// success:false result rather than omitting that symbol or aborting the
// batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, codes []string, reportType string, singleStockNotify bool) []domain.AnalysisResult {
	results := make([]domain.AnalysisResult, len(codes))

	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup
	for i, code := range codes {
		i, code := i, code
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := p.ProcessSingleStock(ctx, code, "", reportType, singleStockNotify)
			if err != nil {
				p.log.Error().Err(err).Str("code", code).Msg("analysis pipeline failed for symbol")
				result = &domain.AnalysisResult{
					Symbol:       symbol.Classify(code),
					GeneratedAt:  time.Now(),
					Success:      false,
					ErrorMessage: err.Error(),
				}
			}
			results[i] = *result
		}()
	}
	wg.Wait()

	return results
}

// ProcessSingleStock runs the full per-symbol pipeline for one code. A
// "no history available" failure returns the result early with
// Success=false and ErrorMessage set (the error return stays nil); every
// other step degrades to a partial field on the returned result instead
// of aborting.
func (p *Pipeline) ProcessSingleStock(ctx context.Context, code, queryID, reportType string, singleStockNotify bool) (*domain.AnalysisResult, error) {
	sym := symbol.Classify(code)
	if queryID == "" {
		queryID = fmt.Sprintf("%s_%d", sym.Code, time.Now().UnixMicro())
	}

	result := &domain.AnalysisResult{
		QueryID:     queryID,
		Symbol:      sym,
		GeneratedAt: time.Now(),
	}

	name, err := p.manager.Name(ctx, sym)
	if err != nil {
		name = sym.Code
		result.Errors = append(result.Errors, fmt.Sprintf("name resolution: %v", err))
	}
	result.Name = name

	candles, err := p.manager.Daily(ctx, sym, historyLookback)
	if err != nil {
		result.Success = false
		result.ErrorMessage = fmt.Sprintf("no history available: %v", err)
		return result, nil
	}
	enriched := p.indicator.Enrich(candles)

	var (
		quote    *domain.RealtimeQuote
		quoteSrc string
		chips    *domain.ChipDistribution
	)
	g, gctx := errgroup.WithContext(ctx)
	if !p.DisableQuote {
		g.Go(func() error {
			q, err := p.manager.Quote(gctx, sym)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("quote: %v", err))
				return nil
			}
			quote = &q
			quoteSrc = q.Source
			return nil
		})
	}
	if !p.DisableChips && chipsApplicable(sym) {
		g.Go(func() error {
			c, err := p.manager.Chips(gctx, sym)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("chips: %v", err))
				return nil
			}
			chips = &c
			return nil
		})
	}
	_ = g.Wait() // both goroutines already swallow their own errors into result.Errors

	var news []domain.NewsItem
	if _, noop := p.search.(NoopSearch); p.search != nil && !noop {
		items, err := p.search.Search(ctx, name+" 股票 最新消息")
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("search: %v", err))
		} else {
			news = items
			result.SearchPerformed = true
		}
	}

	draft, err := p.analyzer.Analyze(ctx, Prompt{
		Symbol:     sym,
		Name:       name,
		ReportType: reportType,
		Candles:    enriched,
		Quote:      quote,
		Chips:      chips,
		News:       news,
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("analyzer: %v", err))
		draft, _ = TemplateAnalyzer{}.Analyze(ctx, Prompt{Symbol: sym, Name: name, Candles: enriched})
	}

	result.SentimentScore = ClampSentiment(draft.SentimentScore)
	result.OperationAdvice = draft.OperationAdvice
	result.DecisionType = DeriveDecision(draft.OperationAdvice)
	result.TrendPrediction = draft.TrendPrediction
	result.Confidence = draft.Confidence
	result.Narrative = draft.Narrative
	result.Dashboard = draft.Dashboard
	result.NewsItems = news
	result.Success = true

	if quote != nil {
		result.MarketSnapshot = &domain.MarketSnapshot{Quote: *quote, Source: quoteSrc}
		result.DataSources = append(result.DataSources, quoteSrc)
	}
	if chips != nil {
		result.DataSources = append(result.DataSources, "chips")
	}
	result.DataSources = append(result.DataSources, "history")

	if p.store != nil {
		if err := p.store.InsertAnalysis(ctx, result); err != nil {
			p.log.Error().Err(err).Str("code", code).Msg("failed to persist analysis result")
		}
	}

	if singleStockNotify && p.notifier != nil {
		if err := p.notifier.NotifySingle(ctx, result); err != nil {
			p.log.Error().Err(err).Str("code", code).Msg("failed to notify single-stock report")
		}
	}

	return result, nil
}

// chipsApplicable reports whether sym carries chip data at all: the
// statistic only exists for regular A-shares, so ETFs, indices, and US
// tickers skip the step.
func chipsApplicable(sym domain.Symbol) bool {
	switch sym.Market {
	case domain.MarketETF, domain.MarketIndex, domain.MarketUS:
		return false
	default:
		return true
	}
}
