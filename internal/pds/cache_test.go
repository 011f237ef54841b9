package pds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFetchesThroughAndCaches(t *testing.T) {
	f := newFakePDS(t)
	f.repos = []Repo{{DID: "did:plc:alpha"}}
	cache := NewCache(f.client(), 2)
	ctx := context.Background()

	accounts, err := cache.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	// A second read within maxAge is served from cache, even if the PDS
	// data changed underneath.
	f.mu.Lock()
	f.repos = append(f.repos, Repo{DID: "did:plc:beta"})
	f.mu.Unlock()

	accounts, err = cache.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestCacheInvalidate(t *testing.T) {
	f := newFakePDS(t)
	f.repos = []Repo{{DID: "did:plc:alpha"}}
	cache := NewCache(f.client(), 2)
	ctx := context.Background()

	_, err := cache.Accounts(ctx)
	require.NoError(t, err)

	f.mu.Lock()
	f.repos = append(f.repos, Repo{DID: "did:plc:beta"})
	f.mu.Unlock()
	cache.Invalidate()

	accounts, err := cache.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestCacheHealthy(t *testing.T) {
	f := newFakePDS(t)
	cache := NewCache(f.client(), 2)
	ctx := context.Background()

	assert.True(t, cache.Healthy(ctx))

	// Cached: flipping the fake's health is not visible until maxAge passes.
	f.mu.Lock()
	f.healthy = false
	f.mu.Unlock()
	assert.True(t, cache.Healthy(ctx))
}

func TestCacheRunStopsOnCancel(t *testing.T) {
	f := newFakePDS(t)
	cache := NewCache(f.client(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Run(ctx)
		close(done)
	}()

	// Give the initial refresh a moment, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cache workers did not stop on context cancellation")
	}
}

func TestCacheDefaultsWorkerCount(t *testing.T) {
	cache := NewCache(nil, 0)
	assert.Equal(t, 2, cache.workers)
}
