package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds forming the fetch-layer error taxonomy. Fetchers
// wrap one of these with fmt.Errorf("...: %w", ErrX) so callers can
// dispatch with errors.Is regardless of which source produced the error.
var (
	ErrNetwork       = errors.New("network failure")
	ErrRateLimited   = errors.New("rate limited")
	ErrBanned        = errors.New("source banned or blocked the client")
	ErrDataMissing   = errors.New("requested data not available")
	ErrNormalization = errors.New("failed to normalize source data")
	ErrConfiguration = errors.New("missing or invalid configuration")
	ErrFatal         = errors.New("unrecoverable error")
)

// DataFetchError aggregates the per-source failures collected while
// FetcherManager walks its priority list, so the caller can see exactly
// why every candidate source failed.
type DataFetchError struct {
	Symbol string
	Op     string
	Causes []error
}

func (e *DataFetchError) Error() string {
	parts := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		parts[i] = c.Error()
	}
	return fmt.Sprintf("%s(%s): all sources failed: %s", e.Op, e.Symbol, strings.Join(parts, "; "))
}

// Unwrap exposes the joined causes so errors.Is/errors.As can still reach
// a specific sentinel kind buried in the aggregate.
func (e *DataFetchError) Unwrap() []error {
	return e.Causes
}
