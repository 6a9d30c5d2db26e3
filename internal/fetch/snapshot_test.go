package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcaaa31928/daily-stock-analysis/internal/cache"
	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// countingSnapshot fakes a snapshot-oriented upstream and counts round
// trips.
type countingSnapshot struct {
	quotes     map[string]domain.RealtimeQuote
	batchCalls int
	quoteCalls int
}

func (c *countingSnapshot) SourceKey() string { return "snapshot_test" }

func (c *countingSnapshot) Quote(_ context.Context, sym domain.Symbol) (domain.RealtimeQuote, error) {
	c.quoteCalls++
	q, ok := c.quotes[sym.Code]
	if !ok {
		return domain.RealtimeQuote{}, domain.ErrDataMissing
	}
	return q, nil
}

func (c *countingSnapshot) BatchQuotes(_ context.Context, syms []domain.Symbol) (map[string]domain.RealtimeQuote, error) {
	c.batchCalls++
	out := make(map[string]domain.RealtimeQuote, len(syms))
	for _, sym := range syms {
		if q, ok := c.quotes[sym.Code]; ok {
			out[sym.Code] = q
		}
	}
	return out, nil
}

func symbols(codes ...string) []domain.Symbol {
	out := make([]domain.Symbol, len(codes))
	for i, c := range codes {
		out[i] = domain.Symbol{Code: c, Market: domain.MarketAShare}
	}
	return out
}

func TestSnapshotCache_BatchWarmsQuotes(t *testing.T) {
	upstream := &countingSnapshot{quotes: map[string]domain.RealtimeQuote{
		"600519": {Price: 1700, Source: "snapshot_test"},
		"000001": {Price: 11.2, Source: "snapshot_test"},
		"601318": {Price: 45.6, Source: "snapshot_test"},
		"000002": {Price: 9.8, Source: "snapshot_test"},
		"600036": {Price: 33.1, Source: "snapshot_test"},
	}}
	sc := NewSnapshotCache(upstream, cache.New(10*time.Minute))

	batch, err := sc.BatchQuotes(context.Background(), symbols("600519", "000001", "601318", "000002", "600036"))
	require.NoError(t, err)
	assert.Len(t, batch, 5)
	assert.Equal(t, 1, upstream.batchCalls)

	// Every per-symbol quote in the batch now resolves from the snapshot.
	for _, code := range []string{"600519", "000001", "601318", "000002", "600036"} {
		q, err := sc.Quote(context.Background(), domain.Symbol{Code: code})
		require.NoError(t, err)
		assert.NotZero(t, q.Price)
	}
	assert.Equal(t, 0, upstream.quoteCalls)

	// A second batch within the TTL is served entirely from cache.
	_, err = sc.BatchQuotes(context.Background(), symbols("600519", "000001"))
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.batchCalls)
}

func TestSnapshotCache_ExpiredSnapshotRefetches(t *testing.T) {
	upstream := &countingSnapshot{quotes: map[string]domain.RealtimeQuote{"600519": {Price: 1700}}}
	sc := NewSnapshotCache(upstream, cache.New(time.Millisecond))

	_, err := sc.BatchQuotes(context.Background(), symbols("600519"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = sc.BatchQuotes(context.Background(), symbols("600519"))
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.batchCalls)
}

func TestSnapshotCache_ColdQuoteFallsThrough(t *testing.T) {
	upstream := &countingSnapshot{quotes: map[string]domain.RealtimeQuote{"600519": {Price: 1700}}}
	sc := NewSnapshotCache(upstream, cache.New(time.Minute))

	q, err := sc.Quote(context.Background(), domain.Symbol{Code: "600519"})
	require.NoError(t, err)
	assert.Equal(t, 1700.0, q.Price)
	assert.Equal(t, 1, upstream.quoteCalls)
}

func TestSnapshotCache_UncoveredCodeTriggersMerge(t *testing.T) {
	upstream := &countingSnapshot{quotes: map[string]domain.RealtimeQuote{
		"600519": {Price: 1700},
		"000001": {Price: 11.2},
	}}
	sc := NewSnapshotCache(upstream, cache.New(time.Minute))

	_, err := sc.BatchQuotes(context.Background(), symbols("600519"))
	require.NoError(t, err)

	_, err = sc.BatchQuotes(context.Background(), symbols("000001"))
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.batchCalls)

	// Merged snapshot now covers both codes without further round trips.
	_, err = sc.BatchQuotes(context.Background(), symbols("600519", "000001"))
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.batchCalls)
}
