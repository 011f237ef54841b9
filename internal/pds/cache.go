package pds

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultRefreshInterval = 30 * time.Second
	defaultMaxAge          = time.Minute
)

// Cache keeps the dashboard's view of the PDS warm. A fixed pool of refresh
// workers executes health and account list fetches in the background so
// dashboard reads normally never wait on the PDS.
type Cache struct {
	client  *Client
	workers int

	interval time.Duration
	maxAge   time.Duration

	jobs chan func(context.Context)

	mu         sync.RWMutex
	accounts   []Account
	accountsAt time.Time
	healthy    bool
	healthyAt  time.Time
}

// NewCache creates a cache over client with the given worker pool size.
func NewCache(client *Client, workers int) *Cache {
	if workers <= 0 {
		workers = 2
	}
	return &Cache{
		client:   client,
		workers:  workers,
		interval: defaultRefreshInterval,
		maxAge:   defaultMaxAge,
		jobs:     make(chan func(context.Context), workers*2),
	}
}

// Run starts the worker pool and the refresh ticker, blocking until ctx is
// cancelled. All workers have exited when it returns.
func (c *Cache) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-c.jobs:
					if !ok {
						return
					}
					job(ctx)
				}
			}
		}(i)
	}
	log.Info().Int("workers", c.workers).Msg("PDS cache workers started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.enqueueRefresh()
	for {
		select {
		case <-ctx.Done():
			close(c.jobs)
			wg.Wait()
			return
		case <-ticker.C:
			c.enqueueRefresh()
		}
	}
}

// enqueueRefresh schedules both refresh jobs without blocking; if the pool is
// saturated the tick is skipped.
func (c *Cache) enqueueRefresh() {
	for _, job := range []func(context.Context){c.refreshHealth, c.refreshAccounts} {
		select {
		case c.jobs <- job:
		default:
		}
	}
}

func (c *Cache) refreshHealth(ctx context.Context) {
	healthy := c.client.Status(ctx)
	c.mu.Lock()
	c.healthy = healthy
	c.healthyAt = time.Now()
	c.mu.Unlock()
}

func (c *Cache) refreshAccounts(ctx context.Context) {
	accounts, err := c.client.ListAccounts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("background account refresh failed")
		return
	}
	c.mu.Lock()
	c.accounts = accounts
	c.accountsAt = time.Now()
	c.mu.Unlock()
}

// Accounts returns the account list, from cache when fresh, otherwise fetched
// directly from the PDS.
func (c *Cache) Accounts(ctx context.Context) ([]Account, error) {
	c.mu.RLock()
	accounts, at := c.accounts, c.accountsAt
	c.mu.RUnlock()
	if accounts != nil && time.Since(at) < c.maxAge {
		return accounts, nil
	}

	fetched, err := c.client.ListAccounts(ctx)
	if err != nil {
		if accounts != nil {
			log.Warn().Err(err).Msg("account fetch failed, serving stale cache")
			return accounts, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.accounts = fetched
	c.accountsAt = time.Now()
	c.mu.Unlock()
	return fetched, nil
}

// Healthy reports the PDS health flag, from cache when fresh.
func (c *Cache) Healthy(ctx context.Context) bool {
	c.mu.RLock()
	healthy, at := c.healthy, c.healthyAt
	c.mu.RUnlock()
	if !at.IsZero() && time.Since(at) < c.maxAge {
		return healthy
	}
	healthy = c.client.Status(ctx)
	c.mu.Lock()
	c.healthy = healthy
	c.healthyAt = time.Now()
	c.mu.Unlock()
	return healthy
}

// Invalidate drops cached account data; the next read goes to the PDS. Called
// after account actions so the dashboard reflects them immediately.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.accounts = nil
	c.accountsAt = time.Time{}
	c.mu.Unlock()
}
