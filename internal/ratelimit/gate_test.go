package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_EnforcesMinDelay(t *testing.T) {
	g := NewGate(50*time.Millisecond, 0, 0)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, g.Wait(ctx))
	require.NoError(t, g.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestGate_RollingWindowQuota(t *testing.T) {
	g := NewGate(0, 0, 2)
	ctx := context.Background()

	require.NoError(t, g.Wait(ctx))
	require.NoError(t, g.Wait(ctx))

	// Third call within the same minute must block until the window frees
	// up; use a short-lived context to prove it would wait, not proceed.
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := g.Wait(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_ContextCancel(t *testing.T) {
	g := NewGate(time.Hour, 0, 0)
	require.NoError(t, g.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_PerSourceIsolation(t *testing.T) {
	m := NewManager(func() *Gate { return NewGate(30*time.Millisecond, 0, 0) })
	ctx := context.Background()

	require.NoError(t, m.Wait(ctx, "tencent"))
	// A different source key must not be throttled by tencent's state.
	start := time.Now()
	require.NoError(t, m.Wait(ctx, "sina"))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestManager_ConfigureOverridesFactory(t *testing.T) {
	m := NewManager(func() *Gate { return NewGate(0, 0, 0) })
	m.Configure("tushare", NewGate(0, 0, 1))
	ctx := context.Background()

	require.NoError(t, m.Wait(ctx, "tushare"))

	// The configured per-minute quota of 1 must now block the second call.
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := m.Wait(shortCtx, "tushare")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other keys still use the unlimited factory gate.
	require.NoError(t, m.Wait(ctx, "sina"))
	require.NoError(t, m.Wait(ctx, "sina"))
}
