package notify

import (
	"context"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// ResultNotifier adapts a Dispatcher to analysis.Notifier and the
// batch/market-review call sites, so every caller shares one
// markdown-rendering and chunking path.
type ResultNotifier struct {
	dispatcher *Dispatcher
}

func NewResultNotifier(d *Dispatcher) *ResultNotifier {
	return &ResultNotifier{dispatcher: d}
}

// NotifySingle satisfies analysis.Notifier.
func (n *ResultNotifier) NotifySingle(ctx context.Context, result *domain.AnalysisResult) error {
	res := n.dispatcher.Dispatch(ctx, RenderSingle(result))
	return firstChannelError(res)
}

// NotifyBatch sends a combined dashboard for a full batch run.
func (n *ResultNotifier) NotifyBatch(ctx context.Context, results []domain.AnalysisResult) error {
	res := n.dispatcher.Dispatch(ctx, RenderBatch(results))
	return firstChannelError(res)
}

// NotifyMarketReview sends a freeform narrative (used by the market
// review phase, which has no per-symbol Dashboard shape).
func (n *ResultNotifier) NotifyMarketReview(ctx context.Context, markdown string) error {
	res := n.dispatcher.Dispatch(ctx, markdown)
	return firstChannelError(res)
}

// firstChannelError returns nil if at least one channel succeeded;
// callers that
// need the per-channel detail should call Dispatch directly instead.
func firstChannelError(res Result) error {
	if res.AnySent || len(res.Failed) == 0 {
		return nil
	}
	for _, msg := range res.Failed {
		return errString(msg)
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }
