// Package circuit implements a per-source circuit breaker so a single
// misbehaving data provider can't be hammered with doomed requests while
// it is down.
package circuit

import (
	"sync"
	"time"

	"github.com/gcaaa31928/daily-stock-analysis/internal/registry"
)

// State is one of the three circuit states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker tracks the health of a single source and decides whether calls
// should be allowed through.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failureThreshold int
	cooldown         time.Duration
	consecutiveFails int
	openedAt         time.Time
}

// NewBreaker creates a Breaker that opens after failureThreshold
// consecutive failures and stays open for cooldown before allowing one
// half-open trial request through.
func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:            Closed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

// Allow reports whether a request may proceed right now. In the Open
// state it transitions to HalfOpen and allows exactly one trial once the
// cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		// A trial is already in flight; callers that race in behind it
		// still wait for the cooldown's next tick.
		return false
	case Open:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = HalfOpen
			return true
		}
		return false
	}
	return false
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.consecutiveFails = 0
}

// RecordFailure counts a failure. In HalfOpen, any failure immediately
// reopens the breaker. In Closed, the breaker opens once the configured
// threshold of consecutive failures is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.failureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.consecutiveFails = 0
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Manager fans a Breaker out per source key.
type Manager struct {
	reg *registry.Registry[Breaker]
}

// NewManager creates a Manager whose breakers use the given thresholds.
func NewManager(failureThreshold int, cooldown time.Duration) *Manager {
	return &Manager{
		reg: registry.New(func() *Breaker { return NewBreaker(failureThreshold, cooldown) }),
	}
}

// Allow reports whether sourceKey's breaker currently permits a request.
func (m *Manager) Allow(sourceKey string) bool {
	return m.reg.GetOrCreate(sourceKey).Allow()
}

// RecordSuccess records a successful call against sourceKey.
func (m *Manager) RecordSuccess(sourceKey string) {
	m.reg.GetOrCreate(sourceKey).RecordSuccess()
}

// RecordFailure records a failed call against sourceKey.
func (m *Manager) RecordFailure(sourceKey string) {
	m.reg.GetOrCreate(sourceKey).RecordFailure()
}
