// Package ratelimit throttles outbound requests to each data source
// independently, combining a minimum inter-request delay with a rolling
// per-minute quota.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gcaaa31928/daily-stock-analysis/internal/registry"
)

// Gate paces requests to one source: it enforces a minimum delay between
// consecutive requests (with jitter, to avoid synchronized bursts across
// goroutines) and a rolling 60-second request count ceiling.
type Gate struct {
	mu            sync.Mutex
	minDelay      time.Duration
	jitter        time.Duration
	lastRequest   time.Time
	maxPerMinute  int
	window        []time.Time // timestamps of requests within the trailing minute
}

// NewGate creates a Gate enforcing minDelay between requests (plus up to
// jitter of random extra sleep) and maxPerMinute requests in any trailing
// 60-second window. maxPerMinute <= 0 disables the rolling-window check.
func NewGate(minDelay, jitter time.Duration, maxPerMinute int) *Gate {
	return &Gate{
		minDelay:     minDelay,
		jitter:       jitter,
		maxPerMinute: maxPerMinute,
	}
}

// Wait blocks until it is this caller's turn to proceed, respecting both
// the minimum inter-request delay and the rolling-window quota, or returns
// ctx.Err() if ctx is cancelled first.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		wait := g.nextWaitLocked()
		if wait <= 0 {
			g.recordLocked()
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// nextWaitLocked returns how long the caller must still wait, or <= 0 if
// it may proceed immediately. Must be called with g.mu held.
func (g *Gate) nextWaitLocked() time.Duration {
	now := time.Now()

	if !g.lastRequest.IsZero() {
		elapsed := now.Sub(g.lastRequest)
		delay := g.minDelay
		if g.jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(g.jitter)))
		}
		if elapsed < delay {
			return delay - elapsed
		}
	}

	if g.maxPerMinute > 0 {
		g.pruneWindowLocked(now)
		if len(g.window) >= g.maxPerMinute {
			oldest := g.window[0]
			return oldest.Add(time.Minute).Sub(now)
		}
	}

	return 0
}

func (g *Gate) recordLocked() {
	now := time.Now()
	g.lastRequest = now
	if g.maxPerMinute > 0 {
		g.window = append(g.window, now)
	}
}

func (g *Gate) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(g.window) && g.window[i].Before(cutoff) {
		i++
	}
	g.window = g.window[i:]
}

// Manager fans a Gate out per source key so every fetcher gets its own
// independent pacing state.
type Manager struct {
	reg *registry.Registry[Gate]
}

// NewManager creates a Manager that lazily builds a Gate for each source
// key on first use via newFn.
func NewManager(newFn func() *Gate) *Manager {
	return &Manager{reg: registry.New(newFn)}
}

// Configure installs a purpose-built Gate for sourceKey, overriding the
// default factory. Sources with a stricter quota than the default (the
// token-paid per-minute cap, for one) get their gate wired here.
func (m *Manager) Configure(sourceKey string, g *Gate) {
	m.reg.Put(sourceKey, g)
}

// Wait blocks on the gate for sourceKey.
func (m *Manager) Wait(ctx context.Context, sourceKey string) error {
	return m.reg.GetOrCreate(sourceKey).Wait(ctx)
}
