package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := New(time.Hour)
	c.Set("a", 42)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("a", 42)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_GetOrFill_Dedupes(t *testing.T) {
	c := New(time.Hour)
	var calls int64

	var wg sync.WaitGroup
	results := make([]interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.GetOrFill("k", func() (interface{}, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return "value", nil
			})
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestTTLCache_GetOrFill_CachesFailure(t *testing.T) {
	c := New(time.Hour)
	var calls int64
	wantErr := errors.New("upstream down")

	_, err1 := c.GetOrFill("k", func() (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return nil, wantErr
	})
	_, err2 := c.GetOrFill("k", func() (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return nil, wantErr
	})

	assert.ErrorIs(t, err1, wantErr)
	assert.ErrorIs(t, err2, wantErr)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}
