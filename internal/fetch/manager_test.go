package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcaaa31928/daily-stock-analysis/internal/circuit"
	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
	"github.com/gcaaa31928/daily-stock-analysis/internal/ratelimit"
)

type fakeDaily struct {
	key string
	err error
	out []domain.Candle
}

func (f *fakeDaily) SourceKey() string { return f.key }
func (f *fakeDaily) Daily(ctx context.Context, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func newTestManager() *Manager {
	breakers := circuit.NewManager(3, time.Minute)
	gates := ratelimit.NewManager(func() *ratelimit.Gate { return ratelimit.NewGate(0, 0, 0) })
	return NewManager(breakers, gates, zerolog.Nop())
}

func TestManager_Daily_FailsOverToLowerPriority(t *testing.T) {
	m := newTestManager()
	want := []domain.Candle{{Close: 10}}

	m.Register(&fakeDaily{key: "primary", err: errors.New("boom")}, 100)
	m.Register(&fakeDaily{key: "secondary", out: want}, 50)

	got, err := m.Daily(context.Background(), domain.Symbol{Code: "600519"}, 30)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestManager_Daily_AllFailAggregates(t *testing.T) {
	m := newTestManager()
	m.Register(&fakeDaily{key: "a", err: errors.New("a-down")}, 100)
	m.Register(&fakeDaily{key: "b", err: errors.New("b-down")}, 50)

	_, err := m.Daily(context.Background(), domain.Symbol{Code: "600519"}, 30)
	require.Error(t, err)

	var dfe *domain.DataFetchError
	require.ErrorAs(t, err, &dfe)
	assert.Len(t, dfe.Causes, 2)
}

func TestManager_Daily_HighestPriorityFirst(t *testing.T) {
	m := newTestManager()
	calledLow := false
	m.Register(&fakeDaily{key: "high", out: []domain.Candle{{Close: 1}}}, 100)
	m.Register(&recordingFetcher{fakeDaily: fakeDaily{key: "low", out: []domain.Candle{{Close: 2}}}, called: &calledLow}, 10)

	got, err := m.Daily(context.Background(), domain.Symbol{Code: "600519"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got[0].Close)
	assert.False(t, calledLow)
}

type recordingFetcher struct {
	fakeDaily
	called *bool
}

func (r *recordingFetcher) Daily(ctx context.Context, sym domain.Symbol, lookback int) ([]domain.Candle, error) {
	*r.called = true
	return r.fakeDaily.Daily(ctx, sym, lookback)
}

func TestManager_Daily_SkipsOpenCircuit(t *testing.T) {
	breakers := circuit.NewManager(1, time.Hour)
	gates := ratelimit.NewManager(func() *ratelimit.Gate { return ratelimit.NewGate(0, 0, 0) })
	m := NewManager(breakers, gates, zerolog.Nop())

	m.Register(&fakeDaily{key: "primary", out: []domain.Candle{{Close: 1}}}, 100)
	breakers.RecordFailure("primary") // trips the breaker before any call

	m.Register(&fakeDaily{key: "secondary", out: []domain.Candle{{Close: 2}}}, 50)

	got, err := m.Daily(context.Background(), domain.Symbol{Code: "600519"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got[0].Close)
}

type fakeBatchQuote struct {
	key   string
	calls int
}

func (f *fakeBatchQuote) SourceKey() string { return f.key }
func (f *fakeBatchQuote) BatchQuotes(ctx context.Context, syms []domain.Symbol) (map[string]domain.RealtimeQuote, error) {
	f.calls++
	out := make(map[string]domain.RealtimeQuote, len(syms))
	for _, s := range syms {
		out[s.Code] = domain.RealtimeQuote{Price: 1, Source: f.key}
	}
	return out, nil
}

func TestManager_PrefetchQuotes_NoopBelowMinBatch(t *testing.T) {
	m := newTestManager()
	src := &fakeBatchQuote{key: "snapshot"}
	m.Register(src, 100)

	syms := []domain.Symbol{{Code: "600519"}, {Code: "000001"}}
	got := m.PrefetchQuotes(context.Background(), syms)
	assert.Empty(t, got)
	assert.Equal(t, 0, src.calls)
}

func TestManager_PrefetchQuotes_SingleRoundTripForBatch(t *testing.T) {
	m := newTestManager()
	src := &fakeBatchQuote{key: "snapshot"}
	m.Register(src, 100)

	syms := []domain.Symbol{
		{Code: "600519"}, {Code: "000001"}, {Code: "601318"}, {Code: "000002"}, {Code: "600036"},
	}
	got := m.PrefetchQuotes(context.Background(), syms)
	assert.Len(t, got, 5)
	assert.Equal(t, 1, src.calls)
}

type fakeQuoteSource struct {
	key    string
	q      domain.RealtimeQuote
	err    error
	called int
}

func (f *fakeQuoteSource) SourceKey() string { return f.key }
func (f *fakeQuoteSource) Quote(ctx context.Context, sym domain.Symbol) (domain.RealtimeQuote, error) {
	f.called++
	if f.err != nil {
		return domain.RealtimeQuote{}, f.err
	}
	return f.q, nil
}

type fakeForeignQuote struct{ fakeQuoteSource }

func (f *fakeForeignQuote) ForeignMarkets() {}

func TestManager_Quote_USRoutesToForeignSourceOnly(t *testing.T) {
	m := newTestManager()
	domestic := &fakeQuoteSource{key: "domestic", q: domain.RealtimeQuote{Price: 1, Source: "domestic"}}
	foreign := &fakeForeignQuote{fakeQuoteSource{key: "foreign", q: domain.RealtimeQuote{Price: 2, Source: "foreign"}}}
	m.Register(domestic, 100)
	m.Register(foreign, 10)

	q, err := m.Quote(context.Background(), domain.Symbol{Code: "TSLA", Market: domain.MarketUS})
	require.NoError(t, err)
	assert.Equal(t, "foreign", q.Source)
	assert.Equal(t, 0, domestic.called)

	// Domestic symbols still prefer the higher-priority domestic source.
	q, err = m.Quote(context.Background(), domain.Symbol{Code: "600519", Market: domain.MarketAShare})
	require.NoError(t, err)
	assert.Equal(t, "domestic", q.Source)
}

func TestManager_DataMissingDoesNotTripBreaker(t *testing.T) {
	breakers := circuit.NewManager(1, time.Hour)
	gates := ratelimit.NewManager(func() *ratelimit.Gate { return ratelimit.NewGate(0, 0, 0) })
	m := NewManager(breakers, gates, zerolog.Nop())

	rejecting := &fakeDaily{key: "rejecting", err: fmt.Errorf("不支持美股: %w", domain.ErrDataMissing)}
	m.Register(rejecting, 100)

	for i := 0; i < 3; i++ {
		_, err := m.Daily(context.Background(), domain.Symbol{Code: "AAPL", Market: domain.MarketUS}, 30)
		require.Error(t, err)
	}
	assert.True(t, breakers.Allow("rejecting"))
}

func TestManager_RateLimitedCountsDouble(t *testing.T) {
	breakers := circuit.NewManager(2, time.Hour)
	gates := ratelimit.NewManager(func() *ratelimit.Gate { return ratelimit.NewGate(0, 0, 0) })
	m := NewManager(breakers, gates, zerolog.Nop())

	throttled := &fakeDaily{key: "throttled", err: fmt.Errorf("429: %w", domain.ErrRateLimited)}
	m.Register(throttled, 100)

	// One rate-limited failure counts twice, meeting the threshold of 2.
	_, err := m.Daily(context.Background(), domain.Symbol{Code: "600519"}, 30)
	require.Error(t, err)
	assert.False(t, breakers.Allow("throttled"))
}

func TestManager_Quote_PreferenceListOverridesPriority(t *testing.T) {
	m := newTestManager()
	alpha := &fakeQuoteSource{key: "alpha", q: domain.RealtimeQuote{Price: 1, Source: "alpha"}}
	beta := &fakeQuoteSource{key: "beta", q: domain.RealtimeQuote{Price: 2, Source: "beta"}}
	m.Register(alpha, 100)
	m.Register(beta, 10)
	sym := domain.Symbol{Code: "600519", Market: domain.MarketAShare}

	// Without a preference list, registration priority decides.
	q, err := m.Quote(context.Background(), sym)
	require.NoError(t, err)
	assert.Equal(t, "alpha", q.Source)

	// The configured preference list reorders the quote pool only.
	m.SetQuotePreference([]string{"beta", "alpha"})
	q, err = m.Quote(context.Background(), sym)
	require.NoError(t, err)
	assert.Equal(t, "beta", q.Source)
}

func TestManager_QuotePreference_UnlistedSourcesKeepPriorityOrder(t *testing.T) {
	m := newTestManager()
	listed := &fakeQuoteSource{key: "listed", err: errors.New("down")}
	high := &fakeQuoteSource{key: "high", q: domain.RealtimeQuote{Price: 1, Source: "high"}}
	low := &fakeQuoteSource{key: "low", q: domain.RealtimeQuote{Price: 2, Source: "low"}}
	m.Register(low, 10)
	m.Register(high, 90)
	m.Register(listed, 50)
	m.SetQuotePreference([]string{"listed"})

	// The listed source runs first; when it fails, unlisted sources fall
	// back in registration-priority order.
	q, err := m.Quote(context.Background(), domain.Symbol{Code: "600519", Market: domain.MarketAShare})
	require.NoError(t, err)
	assert.Equal(t, 1, listed.called)
	assert.Equal(t, "high", q.Source)
}
