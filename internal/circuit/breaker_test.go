package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Hour)

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
	b.RecordFailure()

	assert.Equal(t, Open, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.False(t, b.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, HalfOpen, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
}

func TestBreaker_SuccessResets(t *testing.T) {
	b := NewBreaker(2, time.Hour)
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
}

func TestManager_PerSourceIsolation(t *testing.T) {
	m := NewManager(1, time.Hour)
	m.RecordFailure("tencent")
	assert.False(t, m.Allow("tencent"))
	assert.True(t, m.Allow("sina"))
}
