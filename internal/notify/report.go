package notify

import (
	"fmt"
	"strings"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// RenderSingle formats one AnalysisResult as the markdown body sent to a
// single-stock notification. Section headings use "### " so the
// dispatcher's chunker can split on them when a report runs long.
func RenderSingle(r *domain.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s (%s)\n", r.Name, r.Symbol.Code)
	if !r.Success {
		fmt.Fprintf(&b, "**Analysis failed:** %s\n", r.ErrorMessage)
		return b.String()
	}

	fmt.Fprintf(&b, "**Decision:** %s  **Sentiment:** %.0f/100  **Confidence:** %.0f%%\n\n", r.DecisionType, r.SentimentScore, r.Confidence*100)

	if r.MarketSnapshot != nil {
		q := r.MarketSnapshot.Quote
		fmt.Fprintf(&b, "**Price:** %.2f (%.2f%%) via %s\n\n", q.Price, q.ChangePercent, r.MarketSnapshot.Source)
	}

	fmt.Fprintf(&b, "**Core conclusion:** %s\n\n", r.Dashboard.CoreConclusion)
	fmt.Fprintf(&b, "**Data perspective:** %s\n\n", r.Dashboard.DataPerspective)
	fmt.Fprintf(&b, "**Intelligence:** %s\n\n", r.Dashboard.Intelligence)
	fmt.Fprintf(&b, "**Battle plan:** %s\n\n", r.Dashboard.BattlePlan)

	if len(r.Dashboard.KeyLevels) > 0 {
		b.WriteString("**Key levels:**\n")
		for _, lvl := range r.Dashboard.KeyLevels {
			fmt.Fprintf(&b, "- %s\n", lvl)
		}
		b.WriteString("\n")
	}
	if len(r.Dashboard.RiskNotes) > 0 {
		b.WriteString("**Risk notes:**\n")
		for _, n := range r.Dashboard.RiskNotes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("\n")
	}

	if r.Narrative != "" {
		b.WriteString(r.Narrative)
		b.WriteString("\n\n")
	}

	if len(r.DataSources) > 0 {
		fmt.Fprintf(&b, "_Sources: %s. Search performed: %t._\n", strings.Join(r.DataSources, ", "), r.SearchPerformed)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "_Degraded steps: %s._\n", strings.Join(r.Errors, "; "))
	}

	return b.String()
}

// RenderBatch joins a set of per-symbol reports into one markdown body
// separated by "\n---\n", the dispatcher's highest-priority split point.
func RenderBatch(results []domain.AnalysisResult) string {
	sections := make([]string, 0, len(results))
	for i := range results {
		sections = append(sections, RenderSingle(&results[i]))
	}
	return strings.Join(sections, "\n---\n")
}
