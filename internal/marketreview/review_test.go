package marketreview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

type fakeAggregates struct {
	indices []domain.IndexQuote
	sectors []domain.SectorPerformance
	stats   *domain.MarketStats
}

func (f *fakeAggregates) Indices(context.Context) ([]domain.IndexQuote, error) {
	if f.indices == nil {
		return nil, errors.New("no indices")
	}
	return f.indices, nil
}

func (f *fakeAggregates) Sectors(context.Context) ([]domain.SectorPerformance, error) {
	if f.sectors == nil {
		return nil, errors.New("no sectors")
	}
	return f.sectors, nil
}

func (f *fakeAggregates) MarketStats(context.Context) (domain.MarketStats, error) {
	if f.stats == nil {
		return domain.MarketStats{}, errors.New("no stats")
	}
	return *f.stats, nil
}

type recordingStore struct{ body string }

func (s *recordingStore) InsertMarketReview(_ context.Context, _ time.Time, body string) error {
	s.body = body
	return nil
}

type recordingNotifier struct{ body string }

func (n *recordingNotifier) NotifyMarketReview(_ context.Context, markdown string) error {
	n.body = markdown
	return nil
}

type fakeNarrator struct {
	out string
	err error
}

func (f fakeNarrator) Narrate(context.Context, string) (string, error) { return f.out, f.err }

func fullAggregates() *fakeAggregates {
	return &fakeAggregates{
		indices: []domain.IndexQuote{{Name: "上证指数", Price: 3200.5, ChangePercent: 1.2}},
		sectors: []domain.SectorPerformance{
			{Name: "半导体", ChangePercent: 3.1, LeaderSymbol: "688981", LeaderChange: 8.4},
			{Name: "银行", ChangePercent: -0.4},
		},
		stats: &domain.MarketStats{AdvancingCount: 3100, DecliningCount: 1800, LimitUpCount: 45, LimitDownCount: 7},
	}
}

func TestRun_PersistsAndNotifies(t *testing.T) {
	store := &recordingStore{}
	notifier := &recordingNotifier{}
	r := New(fullAggregates(), fakeNarrator{out: "资金面偏暖。"}, store, notifier, 0, zerolog.Nop())

	body, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, body, "上证指数")
	assert.Contains(t, body, "半导体")
	assert.Contains(t, body, "上涨 3100 / 下跌 1800")
	assert.Contains(t, body, "资金面偏暖。")
	assert.Equal(t, body, store.body)
	assert.Equal(t, body, notifier.body)
}

func TestRun_NarratorFailureDegradesToDataOnly(t *testing.T) {
	r := New(fullAggregates(), fakeNarrator{err: errors.New("llm down")}, nil, nil, 0, zerolog.Nop())

	body, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, body, "上证指数")
	assert.NotContains(t, body, "### 点评")
}

func TestRun_PartialAggregates(t *testing.T) {
	agg := &fakeAggregates{indices: []domain.IndexQuote{{Name: "上证指数", Price: 3200}}}
	r := New(agg, nil, nil, nil, 0, zerolog.Nop())

	body, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, body, "上证指数")
	assert.NotContains(t, body, "### 板块")
}

func TestRun_NoDataFails(t *testing.T) {
	r := New(&fakeAggregates{}, nil, nil, nil, 0, zerolog.Nop())
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_DelayRespectsCancellation(t *testing.T) {
	r := New(fullAggregates(), nil, nil, nil, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderData_RanksSectors(t *testing.T) {
	body := renderData(nil, []domain.SectorPerformance{
		{Name: "银行", ChangePercent: -0.4},
		{Name: "半导体", ChangePercent: 3.1},
	}, nil)

	idxSemi := strings.Index(body, "半导体")
	idxBank := strings.Index(body, "银行")
	require.GreaterOrEqual(t, idxSemi, 0)
	require.GreaterOrEqual(t, idxBank, 0)
	assert.Less(t, idxSemi, idxBank)
}
