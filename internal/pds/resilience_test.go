package pds

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The limiter is shared between request handlers and the cache workers, so
// concurrent Wait calls are the normal case. Run under -race.
func TestRateLimiterConcurrentWait(t *testing.T) {
	rl := NewRateLimiter(10000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rl.Wait()
			}
		}()
	}
	wg.Wait()
}

func TestClientConcurrentStatus(t *testing.T) {
	f := newFakePDS(t)
	c := f.client()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.Status(context.Background()))
		}()
	}
	wg.Wait()
}

func TestRateLimiterSpacesCalls(t *testing.T) {
	rl := NewRateLimiter(100) // 10ms interval

	start := time.Now()
	rl.Wait()
	rl.Wait()
	rl.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
