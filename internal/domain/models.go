// Package domain holds the shared data model for market data acquisition
// and analysis: symbols, candles, quotes, chip distributions, and analysis
// results.
package domain

import "time"

// Market identifies the venue a Symbol trades on.
type Market string

const (
	MarketAShare Market = "a_share"
	MarketETF    Market = "etf"
	MarketHK     Market = "hk"
	MarketTW     Market = "tw"
	MarketUS     Market = "us"
	MarketIndex  Market = "index"
)

// Exchange is the domestic listing venue for A-share, ETF, and index
// symbols; foreign symbols carry no exchange tag.
type Exchange string

const (
	ExchangeSH Exchange = "sh"
	ExchangeSZ Exchange = "sz"
)

// Symbol is the canonical, market-qualified identifier for an instrument.
// symbol.Classify is the single place Market and Exchange are derived;
// the per-source code spellings in formats.go read them back instead of
// re-parsing the raw string.
type Symbol struct {
	Code     string // raw user-supplied code, e.g. "600519" or "AAPL"
	Market   Market
	Exchange Exchange // sh/sz for domestic symbols, empty otherwise
}

// Candle is one OHLCV bar for a trading session.
type Candle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Amount float64 // turnover; reconstructed as Volume*Close when the source omits it
}

// EnrichedCandle is a Candle plus the indicators computed over its series.
type EnrichedCandle struct {
	Candle
	MA5         float64
	MA10        float64
	MA20        float64
	VolumeRatio float64 // today's volume / average volume over the lookback window
	BiasMA5     float64 // (close - MA5) / MA5
	Support     float64
	Resistance  float64
}

// RealtimeQuote is a single snapshot of live trade data for a symbol. Every
// numeric field besides Price is optional; a quote is basically valid iff
// Price is present.
type RealtimeQuote struct {
	Symbol        Symbol
	Name          string
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        float64
	Amount        float64
	VolumeRatio   float64
	TurnoverRate  float64
	Amplitude     float64
	Open          float64
	High          float64
	Low           float64
	PreClose      float64
	PE            float64
	PB            float64
	TotalMV       float64
	CircMV        float64
	High52Week    float64
	Low52Week     float64
	Change60Day   float64
	Timestamp     time.Time
	Source        string // which fetcher produced this quote
}

// ChipDistribution summarizes the holding-cost distribution for a symbol,
// used as a proxy for support/resistance and crowding. Only the most
// recent observation per symbol is retained by callers.
type ChipDistribution struct {
	Symbol          Symbol
	AsOf            time.Time
	ProfitRatio     float64 // fraction of outstanding shares currently in profit, in [0,1]
	AvgCost         float64
	Cost90Low       float64
	Cost90High      float64
	Concentration90 float64 // cost band width containing 90% of chips, as a fraction of price, in [0,1]
	Cost70Low       float64
	Cost70High      float64
	Concentration70 float64
}

// IndexQuote is a named market-wide index value (e.g. Shanghai Composite).
type IndexQuote struct {
	Name          string
	Price         float64
	Change        float64
	ChangePercent float64
}

// SectorPerformance is the aggregate move of one industry/sector bucket.
type SectorPerformance struct {
	Name          string
	ChangePercent float64
	LeaderSymbol  string
	LeaderChange  float64
}

// MarketStats aggregates market-wide breadth statistics for a session.
type MarketStats struct {
	AdvancingCount int
	DecliningCount int
	LimitUpCount   int
	LimitDownCount int
	TotalTurnover  float64
}

// NewsItem is one search-result hit surfaced alongside an AnalysisResult.
type NewsItem struct {
	Title   string
	URL     string
	Snippet string
}

// MarketSnapshot is the realtime-quote view embedded in a Dashboard; its
// Source names which fetcher produced it.
type MarketSnapshot struct {
	Quote  RealtimeQuote
	Source string
}

// Dashboard is the structured summary embedded in an AnalysisResult,
// distilled for quick human scanning ahead of the narrative.
type Dashboard struct {
	CoreConclusion  string // one- or two-sentence takeaway
	DataPerspective string // quantitative read: indicators, chips, quote
	Intelligence    string // qualitative read: news/search synthesis
	BattlePlan      string // actionable next-step guidance
	KeyLevels       []string
	RiskNotes       []string
}

// DecisionType is the pipeline's buy/hold/sell verdict, always a total
// function of OperationAdvice (see internal/analysis.DeriveDecision).
type DecisionType string

const (
	DecisionBuy  DecisionType = "buy"
	DecisionHold DecisionType = "hold"
	DecisionSell DecisionType = "sell"
)

// AnalysisResult is the output of one AnalysisPipeline run for one symbol.
type AnalysisResult struct {
	QueryID     string
	Symbol      Symbol
	Name        string
	GeneratedAt time.Time

	SentimentScore  float64 // clamped to [0, 100]
	OperationAdvice string  // free-text advice, usually LLM-authored
	DecisionType    DecisionType
	TrendPrediction string
	Confidence      float64

	Dashboard      Dashboard
	Narrative      string // full LLM-authored markdown report body
	MarketSnapshot *MarketSnapshot
	NewsItems      []NewsItem

	Success         bool
	ErrorMessage    string
	DataSources     []string // quote source key plus "chips"/"history" markers; the history fetcher is not named
	SearchPerformed bool

	Errors []string // non-fatal degradation notes collected along the pipeline
}

// TaskStatus is the lifecycle state of an asynchronously submitted Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one unit of asynchronous analysis work submitted through the
// TaskService or the HTTP API.
type Task struct {
	ID          string
	Symbol      Symbol
	ReportType  string // "simple" | "full"
	Status      TaskStatus
	SubmittedAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Result      *AnalysisResult
	Err         string
}
