package analysis

import (
	"context"
	"fmt"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Prompt is the structured input handed to an Analyzer: everything the
// pipeline gathered before the model call, plus the caller's reporting
// preference. Analyzer is the stable boundary any LLM client must
// implement.
type Prompt struct {
	Symbol     domain.Symbol
	Name       string
	ReportType string // "simple" | "full"
	Candles    []domain.EnrichedCandle
	Quote      *domain.RealtimeQuote
	Chips      *domain.ChipDistribution
	News       []domain.NewsItem
}

// Draft is what an Analyzer returns: the narrative fields the pipeline
// merges with its own computed fields (data sources, clamping, decision
// derivation) to build the final domain.AnalysisResult.
type Draft struct {
	SentimentScore  float64
	OperationAdvice string
	TrendPrediction string
	Confidence      float64
	Narrative       string
	Dashboard       domain.Dashboard
}

// Analyzer is the LLM client boundary. The pipeline only depends on
// this interface, never on a concrete LLM SDK.
type Analyzer interface {
	Analyze(ctx context.Context, p Prompt) (Draft, error)
}

// TemplateAnalyzer is the degraded-mode fallback used when no LLM client
// is configured or the configured one errors: it synthesizes a
// template-only report from the quantitative inputs alone.
type TemplateAnalyzer struct{}

// NewTemplateAnalyzer constructs a TemplateAnalyzer.
func NewTemplateAnalyzer() *TemplateAnalyzer { return &TemplateAnalyzer{} }

// Analyze never errors: it always has enough information to produce a
// conservative, neutral draft from whatever candles/quote/chips are
// present.
func (TemplateAnalyzer) Analyze(_ context.Context, p Prompt) (Draft, error) {
	var last domain.EnrichedCandle
	if n := len(p.Candles); n > 0 {
		last = p.Candles[n-1]
	}

	sentiment := 50.0
	trend := "sideways"
	if last.MA5 > 0 && last.Close > last.MA5 {
		sentiment += 10
		trend = "上行" // mirrors the Chinese-language advice vocabulary the
		// rest of the pipeline's decision table expects
	} else if last.MA5 > 0 && last.Close < last.MA5 {
		sentiment -= 10
		trend = "下行"
	}

	advice := "持有观望"
	if last.BiasMA5 > 0.05 {
		advice = "减仓"
		sentiment -= 5
	} else if last.BiasMA5 < -0.05 {
		advice = "加仓"
		sentiment += 5
	}

	narrative := fmt.Sprintf(
		"## %s (%s)\n\n模板报告：LLM 不可用，基于量化指标生成。\n\n- 收盘价: %.2f\n- MA5/MA10/MA20: %.2f / %.2f / %.2f\n- 量比: %.2f\n- 乖离率: %.2f%%\n",
		p.Name, p.Symbol.Code, last.Close, last.MA5, last.MA10, last.MA20, last.VolumeRatio, last.BiasMA5*100,
	)

	return Draft{
		SentimentScore:  ClampSentiment(sentiment),
		OperationAdvice: advice,
		TrendPrediction: trend,
		Confidence:      0.4, // deliberately low: this is the degraded path, not a real model opinion
		Narrative:       narrative,
		Dashboard: domain.Dashboard{
			CoreConclusion:  fmt.Sprintf("%s 当前趋势: %s", p.Name, trend),
			DataPerspective: fmt.Sprintf("收盘 %.2f，MA5 %.2f，量比 %.2f", last.Close, last.MA5, last.VolumeRatio),
			Intelligence:    "无法获取 LLM 情报分析（模板模式）。",
			BattlePlan:      advice,
		},
	}, nil
}
