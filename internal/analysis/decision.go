// Package analysis implements the per-symbol AnalysisPipeline: it gathers
// history, quote, chip, and news data through the fetch layer, asks an
// Analyzer for a narrative, and assembles a domain.AnalysisResult.
package analysis

import (
	"strings"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// buySubstrings and sellSubstrings are the explicit decision mapping
// table. Matching is substring-based against the free-text operation
// advice; anything that matches neither table defaults to hold.
var (
	buySubstrings  = []string{"買入", "买入", "加仓", "加倉", "增持", "builds"}
	sellSubstrings = []string{"減倉", "减仓", "賣出", "卖出", "清仓", "清倉", "減持"}
)

// DeriveDecision maps free-text operation advice to a DecisionType. It is
// a total function: every input string, including the empty string,
// yields DecisionHold unless a sell or buy substring is found. Sell is
// checked first because "減倉" phrases can incidentally contain
// buy-adjacent characters in compound advice strings.
func DeriveDecision(operationAdvice string) domain.DecisionType {
	for _, s := range sellSubstrings {
		if strings.Contains(operationAdvice, s) {
			return domain.DecisionSell
		}
	}
	for _, s := range buySubstrings {
		if strings.Contains(operationAdvice, s) {
			return domain.DecisionBuy
		}
	}
	return domain.DecisionHold
}

// ClampSentiment bounds a raw sentiment score to the [0, 100] range the
// data model guarantees.
func ClampSentiment(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
