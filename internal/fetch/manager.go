package fetch

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/circuit"
	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
	"github.com/gcaaa31928/daily-stock-analysis/internal/ratelimit"
)

// registration pairs a source with the priority it was registered at.
// Higher priority is tried first; ties are broken by registration order.
type registration struct {
	source   Source
	priority int
}

// Manager walks each symbol's applicable sources in priority order,
// skipping any whose circuit breaker is open and rate-limiting every
// call, falling through to the next source on failure. It degrades
// gracefully: a symbol with no data from any source yields an aggregated
// domain.DataFetchError rather than blocking the whole batch.
type Manager struct {
	daily   []registration
	quote   []registration
	batch   []registration
	chips   []registration
	name    []registration
	bname   []registration
	market  []registration

	breakers *circuit.Manager
	gates    *ratelimit.Manager
	log      zerolog.Logger

	// quotePref orders the quote pool by an operator-configured source
	// preference instead of the registration priority; quote endpoints
	// trade completeness for stability differently than history
	// endpoints, so the two orderings diverge.
	quotePref map[string]int

	nameMu    sync.RWMutex
	nameCache map[string]string // code -> display name, process lifetime
}

// NewManager creates an empty Manager. Sources are wired in with
// Register; ordering is driven by the priority passed to Register, except
// for the quote pool, which follows SetQuotePreference when configured.
func NewManager(breakers *circuit.Manager, gates *ratelimit.Manager, log zerolog.Logger) *Manager {
	return &Manager{
		breakers:  breakers,
		gates:     gates,
		log:       log.With().Str("component", "fetcher-manager").Logger(),
		nameCache: make(map[string]string),
	}
}

// Register adds source to the manager's pools for whichever capability
// interfaces it implements, at the given priority (higher runs first).
func (m *Manager) Register(source Source, priority int) {
	if s, ok := source.(DailyFetcher); ok {
		m.daily = append(m.daily, registration{s, priority})
	}
	if s, ok := source.(QuoteFetcher); ok {
		m.quote = append(m.quote, registration{s, priority})
	}
	if s, ok := source.(BatchQuoteFetcher); ok {
		m.batch = append(m.batch, registration{s, priority})
	}
	if s, ok := source.(ChipsFetcher); ok {
		m.chips = append(m.chips, registration{s, priority})
	}
	if s, ok := source.(NameFetcher); ok {
		m.name = append(m.name, registration{s, priority})
	}
	if s, ok := source.(BatchNameFetcher); ok {
		m.bname = append(m.bname, registration{s, priority})
	}
	if s, ok := source.(MarketAggregatesFetcher); ok {
		m.market = append(m.market, registration{s, priority})
	}
	sortByPriority(m.daily)
	sortByPriority(m.batch)
	sortByPriority(m.chips)
	sortByPriority(m.name)
	sortByPriority(m.bname)
	sortByPriority(m.market)
	m.sortQuotePool()
}

// SetQuotePreference installs the configured per-source ordering for the
// quote pool: listed source keys run first, in list order, ahead of any
// unlisted source (which keeps the registration-priority order among
// themselves). Call before or after Register; the pool re-sorts either
// way.
func (m *Manager) SetQuotePreference(keys []string) {
	m.quotePref = make(map[string]int, len(keys))
	for i, k := range keys {
		m.quotePref[k] = i
	}
	m.sortQuotePool()
}

func sortByPriority(regs []registration) {
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].priority > regs[j].priority })
}

func (m *Manager) sortQuotePool() {
	sort.SliceStable(m.quote, func(i, j int) bool {
		pi, iok := m.quotePref[m.quote[i].source.SourceKey()]
		pj, jok := m.quotePref[m.quote[j].source.SourceKey()]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		case jok:
			return false
		default:
			return m.quote[i].priority > m.quote[j].priority
		}
	})
}

// Daily fetches historical candles for sym, trying each registered
// DailyFetcher in priority order until one returns a non-empty series.
func (m *Manager) Daily(ctx context.Context, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	var causes []error
	for _, reg := range m.daily {
		src := reg.source.(DailyFetcher)
		candles, err := m.callDaily(ctx, src, sym, lookback)
		if err == nil {
			if len(candles) > 0 {
				return candles, nil
			}
			err = &sourceError{source: src.SourceKey(), msg: "no candles returned"}
		}
		causes = append(causes, err)
	}
	return nil, &domain.DataFetchError{Symbol: sym.Code, Op: "Daily", Causes: causes}
}

func (m *Manager) callDaily(ctx context.Context, src DailyFetcher, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	key := src.SourceKey()
	if !m.breakers.Allow(key) {
		return nil, errCircuitOpen(key)
	}
	if err := m.gates.Wait(ctx, key); err != nil {
		return nil, err
	}

	candles, err := doWithRetry(ctx, func(cctx context.Context) ([]domain.Candle, error) {
		return src.Daily(cctx, sym, lookback)
	})
	if err != nil {
		m.recordFailure(key, err)
		m.log.Warn().Err(err).Str("source", key).Str("symbol", sym.Code).Msg("daily fetch failed")
		return nil, err
	}
	m.breakers.RecordSuccess(key)
	return candles, nil
}

// Quote fetches a single realtime quote for sym, preferring registered
// BatchQuoteFetchers only through Prefetch; direct Quote calls walk the
// QuoteFetcher pool in priority order.
func (m *Manager) Quote(ctx context.Context, sym domain.Symbol) (domain.RealtimeQuote, error) {
	var causes []error
	for _, reg := range m.quote {
		src := reg.source.(QuoteFetcher)
		// US symbols go exclusively to foreign-market sources; skipping a
		// domestic source here is routing, not a failure of that source.
		if sym.Market == domain.MarketUS {
			if _, foreign := reg.source.(ForeignQuoteFetcher); !foreign {
				continue
			}
		}
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			causes = append(causes, errCircuitOpen(key))
			continue
		}
		if err := m.gates.Wait(ctx, key); err != nil {
			return domain.RealtimeQuote{}, err
		}

		q, err := doWithRetry(ctx, func(cctx context.Context) (domain.RealtimeQuote, error) {
			return src.Quote(cctx, sym)
		})
		if err != nil {
			m.recordFailure(key, err)
			causes = append(causes, err)
			continue
		}
		m.breakers.RecordSuccess(key)
		return q, nil
	}
	return domain.RealtimeQuote{}, &domain.DataFetchError{Symbol: sym.Code, Op: "Quote", Causes: causes}
}

// prefetchMinBatch is the smallest batch worth a whole-market snapshot
// pull; below it per-symbol quotes are cheaper than warming the cache.
const prefetchMinBatch = 5

// PrefetchQuotes warms the quote cache for many symbols in one round
// trip by calling every registered BatchQuoteFetcher in priority order
// until all symbols are covered, falling back to per-symbol Quote calls
// for any that remain. It is a no-op for batches smaller than
// prefetchMinBatch or when no snapshot-oriented source is registered.
func (m *Manager) PrefetchQuotes(ctx context.Context, syms []domain.Symbol) map[string]domain.RealtimeQuote {
	if len(syms) < prefetchMinBatch || len(m.batch) == 0 {
		return map[string]domain.RealtimeQuote{}
	}

	result := make(map[string]domain.RealtimeQuote, len(syms))
	remaining := make(map[string]domain.Symbol, len(syms))
	for _, s := range syms {
		remaining[s.Code] = s
	}

	for _, reg := range m.batch {
		if len(remaining) == 0 {
			break
		}
		src := reg.source.(BatchQuoteFetcher)
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			continue
		}
		if err := m.gates.Wait(ctx, key); err != nil {
			continue
		}

		pending := make([]domain.Symbol, 0, len(remaining))
		for _, s := range remaining {
			pending = append(pending, s)
		}

		quotes, err := doWithRetry(ctx, func(cctx context.Context) (map[string]domain.RealtimeQuote, error) {
			return src.BatchQuotes(cctx, pending)
		})
		if err != nil {
			m.recordFailure(key, err)
			m.log.Warn().Err(err).Str("source", key).Msg("batch quote prefetch failed")
			continue
		}
		m.breakers.RecordSuccess(key)

		for code, q := range quotes {
			result[code] = q
			delete(remaining, code)
		}
	}

	for _, sym := range remaining {
		if q, err := m.Quote(ctx, sym); err == nil {
			result[sym.Code] = q
		}
	}

	return result
}

// Chips fetches the chip distribution for sym, trying each registered
// ChipsFetcher in priority order. Not every deployment configures a chips
// source, so an empty pool yields a plain DataFetchError the caller can
// treat as "unavailable" rather than fatal.
func (m *Manager) Chips(ctx context.Context, sym domain.Symbol) (domain.ChipDistribution, error) {
	var causes []error
	for _, reg := range m.chips {
		src := reg.source.(ChipsFetcher)
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			causes = append(causes, errCircuitOpen(key))
			continue
		}
		if err := m.gates.Wait(ctx, key); err != nil {
			return domain.ChipDistribution{}, err
		}

		chips, err := doWithRetry(ctx, func(cctx context.Context) (domain.ChipDistribution, error) {
			return src.Chips(cctx, sym)
		})
		if err != nil {
			m.recordFailure(key, err)
			causes = append(causes, err)
			continue
		}
		m.breakers.RecordSuccess(key)
		return chips, nil
	}
	return domain.ChipDistribution{}, &domain.DataFetchError{Symbol: sym.Code, Op: "Chips", Causes: causes}
}

// Name resolves sym's display name, serving from the process-wide name
// cache when possible and otherwise trying each registered NameFetcher
// in priority order.
func (m *Manager) Name(ctx context.Context, sym domain.Symbol) (string, error) {
	if name, ok := m.cachedName(sym.Code); ok {
		return name, nil
	}

	var causes []error
	for _, reg := range m.name {
		src := reg.source.(NameFetcher)
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			causes = append(causes, errCircuitOpen(key))
			continue
		}
		if err := m.gates.Wait(ctx, key); err != nil {
			return "", err
		}

		name, err := doWithRetry(ctx, func(cctx context.Context) (string, error) {
			return src.Name(cctx, sym)
		})
		if err != nil {
			m.recordFailure(key, err)
			causes = append(causes, err)
			continue
		}
		m.breakers.RecordSuccess(key)
		m.storeName(sym.Code, name)
		return name, nil
	}
	return "", &domain.DataFetchError{Symbol: sym.Code, Op: "Name", Causes: causes}
}

func (m *Manager) cachedName(code string) (string, bool) {
	m.nameMu.RLock()
	defer m.nameMu.RUnlock()
	name, ok := m.nameCache[code]
	return name, ok
}

func (m *Manager) storeName(code, name string) {
	if name == "" {
		return
	}
	m.nameMu.Lock()
	m.nameCache[code] = name
	m.nameMu.Unlock()
}

// BatchNames resolves display names for many symbols in one round trip,
// falling back to per-symbol Name calls for anything a batch source
// doesn't cover.
func (m *Manager) BatchNames(ctx context.Context, syms []domain.Symbol) map[string]string {
	result := make(map[string]string, len(syms))
	remaining := make(map[string]domain.Symbol, len(syms))
	for _, s := range syms {
		if name, ok := m.cachedName(s.Code); ok {
			result[s.Code] = name
			continue
		}
		remaining[s.Code] = s
	}

	for _, reg := range m.bname {
		if len(remaining) == 0 {
			break
		}
		src := reg.source.(BatchNameFetcher)
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			continue
		}
		if err := m.gates.Wait(ctx, key); err != nil {
			continue
		}

		pending := make([]domain.Symbol, 0, len(remaining))
		for _, s := range remaining {
			pending = append(pending, s)
		}

		names, err := doWithRetry(ctx, func(cctx context.Context) (map[string]string, error) {
			return src.BatchNames(cctx, pending)
		})
		if err != nil {
			m.recordFailure(key, err)
			continue
		}
		m.breakers.RecordSuccess(key)

		for code, name := range names {
			result[code] = name
			m.storeName(code, name)
			delete(remaining, code)
		}
	}

	for _, sym := range remaining {
		if name, err := m.Name(ctx, sym); err == nil {
			result[sym.Code] = name
		}
	}

	return result
}

// Indices, Sectors, and MarketStats aggregate market-wide data for the
// MarketReview component, trying each registered MarketAggregatesFetcher
// in priority order.

func (m *Manager) Indices(ctx context.Context) ([]domain.IndexQuote, error) {
	var causes []error
	for _, reg := range m.market {
		src := reg.source.(MarketAggregatesFetcher)
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			causes = append(causes, errCircuitOpen(key))
			continue
		}
		idx, err := doWithRetry(ctx, func(cctx context.Context) ([]domain.IndexQuote, error) {
			return src.Indices(cctx)
		})
		if err != nil {
			m.recordFailure(key, err)
			causes = append(causes, err)
			continue
		}
		m.breakers.RecordSuccess(key)
		return idx, nil
	}
	return nil, &domain.DataFetchError{Symbol: "", Op: "Indices", Causes: causes}
}

func (m *Manager) Sectors(ctx context.Context) ([]domain.SectorPerformance, error) {
	var causes []error
	for _, reg := range m.market {
		src := reg.source.(MarketAggregatesFetcher)
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			causes = append(causes, errCircuitOpen(key))
			continue
		}
		sec, err := doWithRetry(ctx, func(cctx context.Context) ([]domain.SectorPerformance, error) {
			return src.Sectors(cctx)
		})
		if err != nil {
			m.recordFailure(key, err)
			causes = append(causes, err)
			continue
		}
		m.breakers.RecordSuccess(key)
		return sec, nil
	}
	return nil, &domain.DataFetchError{Symbol: "", Op: "Sectors", Causes: causes}
}

func (m *Manager) MarketStats(ctx context.Context) (domain.MarketStats, error) {
	var causes []error
	for _, reg := range m.market {
		src := reg.source.(MarketAggregatesFetcher)
		key := src.SourceKey()
		if !m.breakers.Allow(key) {
			causes = append(causes, errCircuitOpen(key))
			continue
		}
		stats, err := doWithRetry(ctx, func(cctx context.Context) (domain.MarketStats, error) {
			return src.MarketStats(cctx)
		})
		if err != nil {
			m.recordFailure(key, err)
			causes = append(causes, err)
			continue
		}
		m.breakers.RecordSuccess(key)
		return stats, nil
	}
	return domain.MarketStats{}, &domain.DataFetchError{Symbol: "", Op: "MarketStats", Causes: causes}
}

// recordFailure books err against key's breaker. DataMissing and
// Configuration kinds never count (an empty answer or a missing token is
// not upstream instability); rate-limit and ban signals count double so
// a throttling source opens its breaker sooner.
func (m *Manager) recordFailure(key string, err error) {
	if errors.Is(err, domain.ErrDataMissing) || errors.Is(err, domain.ErrConfiguration) {
		return
	}
	m.breakers.RecordFailure(key)
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrBanned) {
		m.breakers.RecordFailure(key)
	}
}

func errCircuitOpen(sourceKey string) error {
	return &sourceError{source: sourceKey, msg: "circuit open"}
}

type sourceError struct {
	source string
	msg    string
}

func (e *sourceError) Error() string { return e.source + ": " + e.msg }
