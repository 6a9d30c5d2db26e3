package fetch

import (
	"context"

	"github.com/gcaaa31928/daily-stock-analysis/internal/cache"
	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// SnapshotSource is a snapshot-oriented provider: one upstream call
// returns quotes for many symbols at once.
type SnapshotSource interface {
	QuoteFetcher
	BatchQuoteFetcher
}

// SnapshotCache decorates a SnapshotSource with a whole-market TTL cache
// keyed by the source's key. One batch fill serves every subsequent
// per-symbol Quote within the TTL, so a five-symbol batch costs one
// upstream round trip instead of five.
type SnapshotCache struct {
	inner SnapshotSource
	cache *cache.TTLCache
}

// NewSnapshotCache wraps inner with ttlCache. The wrapper shares inner's
// source key, so rate-gate and breaker state stay unified with the raw
// source.
func NewSnapshotCache(inner SnapshotSource, ttlCache *cache.TTLCache) *SnapshotCache {
	return &SnapshotCache{inner: inner, cache: ttlCache}
}

func (s *SnapshotCache) SourceKey() string { return s.inner.SourceKey() }

// Quote serves sym from the cached snapshot when possible, falling back
// to a direct per-symbol call on a cold or expired cache. Single-symbol
// misses do not refresh the snapshot; only BatchQuotes fills it.
func (s *SnapshotCache) Quote(ctx context.Context, sym domain.Symbol) (domain.RealtimeQuote, error) {
	if snap, ok := s.snapshot(); ok {
		if q, found := snap[sym.Code]; found {
			return q, nil
		}
	}
	return s.inner.Quote(ctx, sym)
}

// BatchQuotes serves the whole request from the cached snapshot when it
// covers every requested code; otherwise it fetches upstream once and
// merges the fresh quotes into the snapshot.
func (s *SnapshotCache) BatchQuotes(ctx context.Context, syms []domain.Symbol) (map[string]domain.RealtimeQuote, error) {
	if snap, ok := s.snapshot(); ok {
		if covered(snap, syms) {
			out := make(map[string]domain.RealtimeQuote, len(syms))
			for _, sym := range syms {
				out[sym.Code] = snap[sym.Code]
			}
			return out, nil
		}
	}

	fresh, err := s.inner.BatchQuotes(ctx, syms)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]domain.RealtimeQuote)
	if snap, ok := s.snapshot(); ok {
		for code, q := range snap {
			merged[code] = q
		}
	}
	for code, q := range fresh {
		merged[code] = q
	}
	s.cache.Set(s.SourceKey(), merged)

	return fresh, nil
}

func (s *SnapshotCache) snapshot() (map[string]domain.RealtimeQuote, bool) {
	v, ok := s.cache.Get(s.SourceKey())
	if !ok {
		return nil, false
	}
	snap, ok := v.(map[string]domain.RealtimeQuote)
	return snap, ok
}

func covered(snap map[string]domain.RealtimeQuote, syms []domain.Symbol) bool {
	for _, sym := range syms {
		if _, ok := snap[sym.Code]; !ok {
			return false
		}
	}
	return true
}
