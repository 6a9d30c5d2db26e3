package analysis

import (
	"context"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// SearchService is the web-search client boundary. The pipeline only
// depends on this interface, never on a concrete search SDK or API key
// rotation.
type SearchService interface {
	Search(ctx context.Context, query string) ([]domain.NewsItem, error)
}

// NoopSearch is used when no search provider is configured: it returns an
// empty result set without performing a search, and the pipeline records
// SearchPerformed=false for it.
type NoopSearch struct{}

func (NoopSearch) Search(_ context.Context, _ string) ([]domain.NewsItem, error) {
	return nil, nil
}
