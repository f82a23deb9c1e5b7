package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestClock_StartsAtDefault(t *testing.T) {
	clock := NewRequestClock(0)
	assert.Equal(t, DefaultClockStart, clock.Next())
}

func TestRequestClock_NextIncrementsMonotonically(t *testing.T) {
	clock := NewRequestClock(100)

	assert.Equal(t, int64(100), clock.Next())
	assert.Equal(t, int64(100), clock.Current())
	assert.Equal(t, int64(101), clock.Next())
	assert.Equal(t, int64(102), clock.Next())
	assert.Equal(t, int64(102), clock.Current())
	assert.Equal(t, int64(102), clock.Now().UnixMilli())
}

func TestRequestClock_Reset(t *testing.T) {
	clock := NewRequestClock(10)
	clock.Next()
	clock.Next()

	clock.Reset()
	assert.Equal(t, int64(9), clock.Current())
	assert.Equal(t, int64(10), clock.Next())
}

func TestRequestClock_ConcurrentAccess(t *testing.T) {
	clock := NewRequestClock(1)
	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	seen := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seen <- clock.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]struct{})
	for v := range seen {
		unique[v] = struct{}{}
	}
	require.Len(t, unique, goroutines*perGoroutine)
	assert.Equal(t, int64(goroutines*perGoroutine), clock.Current())
}
