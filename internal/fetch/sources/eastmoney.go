package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Eastmoney serves the market-wide aggregates Tencent's snapshot endpoint
// doesn't carry: sector board rankings and up/down breadth.
type Eastmoney struct {
	client *http.Client
	log    zerolog.Logger
}

// NewEastmoney constructs an Eastmoney fetcher.
func NewEastmoney(client *http.Client, log zerolog.Logger) *Eastmoney {
	return &Eastmoney{client: client, log: log.With().Str("source", "eastmoney").Logger()}
}

func (e *Eastmoney) SourceKey() string { return "eastmoney" }

// Indices is not served here; the snapshot source covers it and keeping
// one upstream per aggregate keeps failure domains separate.
func (e *Eastmoney) Indices(ctx context.Context) ([]domain.IndexQuote, error) {
	return nil, fmt.Errorf("eastmoney: indices not supported: %w", domain.ErrDataMissing)
}

type emSectorResponse struct {
	Data struct {
		Diff []struct {
			ChangePercent float64 `json:"f3"`
			Name          string  `json:"f14"`
			LeaderName    string  `json:"f128"`
			LeaderChange  float64 `json:"f136"`
		} `json:"diff"`
	} `json:"data"`
}

// Sectors fetches the industry-board ranking, best movers first.
func (e *Eastmoney) Sectors(ctx context.Context) ([]domain.SectorPerformance, error) {
	url := "https://push2.eastmoney.com/api/qt/clist/get?pn=1&pz=20&po=1&fid=f3&fs=m:90+t:2&fields=f3,f14,f128,f136"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("eastmoney: build request: %w", domain.ErrFatal)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eastmoney: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out emSectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("eastmoney: decode sectors: %w", domain.ErrNormalization)
	}
	if len(out.Data.Diff) == 0 {
		return nil, fmt.Errorf("eastmoney: no sectors returned: %w", domain.ErrDataMissing)
	}

	sectors := make([]domain.SectorPerformance, 0, len(out.Data.Diff))
	for _, d := range out.Data.Diff {
		sectors = append(sectors, domain.SectorPerformance{
			Name:          d.Name,
			ChangePercent: d.ChangePercent,
			LeaderSymbol:  d.LeaderName,
			LeaderChange:  d.LeaderChange,
		})
	}
	return sectors, nil
}

type emBreadthResponse struct {
	Data struct {
		Fenbu []map[string]int `json:"fenbu"`
	} `json:"data"`
}

// MarketStats fetches the up/down distribution and folds it into breadth
// counts. Buckets are keyed by percent band ("-11" limit-down through
// "11" limit-up); the sign of the band decides which side it counts for.
func (e *Eastmoney) MarketStats(ctx context.Context) (domain.MarketStats, error) {
	url := "https://push2ex.eastmoney.com/getTopicZDFenBu?ut=7eea3edcaed734bea9cbfc24409ed989&dpt=wz.ztzt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.MarketStats{}, fmt.Errorf("eastmoney: build request: %w", domain.ErrFatal)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.MarketStats{}, fmt.Errorf("eastmoney: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.MarketStats{}, fmt.Errorf("eastmoney: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out emBreadthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.MarketStats{}, fmt.Errorf("eastmoney: decode breadth: %w", domain.ErrNormalization)
	}
	if len(out.Data.Fenbu) == 0 {
		return domain.MarketStats{}, fmt.Errorf("eastmoney: no breadth returned: %w", domain.ErrDataMissing)
	}

	var stats domain.MarketStats
	for _, bucket := range out.Data.Fenbu {
		for band, count := range bucket {
			pct, err := strconv.Atoi(band)
			if err != nil {
				continue
			}
			switch {
			case pct >= 11:
				stats.LimitUpCount += count
				stats.AdvancingCount += count
			case pct > 0:
				stats.AdvancingCount += count
			case pct <= -11:
				stats.LimitDownCount += count
				stats.DecliningCount += count
			case pct < 0:
				stats.DecliningCount += count
			}
		}
	}
	return stats, nil
}

// EastmoneyChips fetches the chip (holding-cost) distribution. It runs
// under its own source key so its breaker and gate trip independently of
// the aggregate endpoints.
type EastmoneyChips struct {
	client *http.Client
	log    zerolog.Logger
}

// NewEastmoneyChips constructs the chip-distribution fetcher.
func NewEastmoneyChips(client *http.Client, log zerolog.Logger) *EastmoneyChips {
	return &EastmoneyChips{client: client, log: log.With().Str("source", "eastmoney_chips").Logger()}
}

func (e *EastmoneyChips) SourceKey() string { return "eastmoney_chips" }

type emChipsResponse struct {
	Data struct {
		Data []struct {
			Date            int     `json:"date"`
			ProfitRatio     float64 `json:"benefitPart"`
			AvgCost         float64 `json:"avgCost"`
			Cost90Low       float64 `json:"cost90Low"`
			Cost90High      float64 `json:"cost90High"`
			Concentration90 float64 `json:"cost90Ratio"`
			Cost70Low       float64 `json:"cost70Low"`
			Cost70High      float64 `json:"cost70High"`
			Concentration70 float64 `json:"cost70Ratio"`
		} `json:"data"`
	} `json:"data"`
}

// Chips fetches the latest chip-distribution observation for sym.
func (e *EastmoneyChips) Chips(ctx context.Context, sym domain.Symbol) (domain.ChipDistribution, error) {
	url := fmt.Sprintf(
		"https://push2ex.eastmoney.com/getTopicCYQ?code=%s&market=%s&ut=7eea3edcaed734bea9cbfc24409ed989&dpt=wzcyq",
		sym.BaseCode(), sym.EastmoneyMarketID(),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ChipDistribution{}, fmt.Errorf("eastmoney_chips: build request: %w", domain.ErrFatal)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.ChipDistribution{}, fmt.Errorf("eastmoney_chips: request failed: %w", domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.ChipDistribution{}, fmt.Errorf("eastmoney_chips: rate limited: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ChipDistribution{}, fmt.Errorf("eastmoney_chips: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var out emChipsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ChipDistribution{}, fmt.Errorf("eastmoney_chips: decode response: %w", domain.ErrNormalization)
	}
	if len(out.Data.Data) == 0 {
		return domain.ChipDistribution{}, fmt.Errorf("eastmoney_chips: %s: %w", sym.Code, domain.ErrDataMissing)
	}

	// Only the most recent observation is retained.
	latest := out.Data.Data[len(out.Data.Data)-1]
	asOf, err := time.ParseInLocation("20060102", strconv.Itoa(latest.Date), time.Local)
	if err != nil {
		return domain.ChipDistribution{}, fmt.Errorf("eastmoney_chips: bad date %d: %w", latest.Date, domain.ErrNormalization)
	}

	return domain.ChipDistribution{
		Symbol:          sym,
		AsOf:            asOf,
		ProfitRatio:     latest.ProfitRatio,
		AvgCost:         latest.AvgCost,
		Cost90Low:       latest.Cost90Low,
		Cost90High:      latest.Cost90High,
		Concentration90: latest.Concentration90,
		Cost70Low:       latest.Cost70Low,
		Cost70High:      latest.Cost70High,
		Concentration70: latest.Concentration70,
	}, nil
}
