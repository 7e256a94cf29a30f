package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viralforge/appointment-payments/internal/domain"
)

// RateCache is a process-local rate cache with per-entry expiry.
type RateCache struct {
	mu      sync.Mutex
	rows    map[string]rateCacheEntry
	gens    map[string]uint64
	allGen  uint64
	nowFn   func() time.Time
	Hits    int
	Misses  int
	Skipped int
	FailGet error
}

type rateCacheEntry struct {
	rates     domain.RateCollection
	expiresAt time.Time
}

func NewRateCache(nowFn func() time.Time) *RateCache {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &RateCache{rows: map[string]rateCacheEntry{}, gens: map[string]uint64{}, nowFn: nowFn}
}

func (c *RateCache) Get(_ context.Context, tuple domain.RateTuple) (*domain.RateCollection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailGet != nil {
		return nil, c.FailGet
	}
	row, ok := c.rows[tuple.Key()]
	if !ok || (!row.expiresAt.IsZero() && c.nowFn().After(row.expiresAt)) {
		delete(c.rows, tuple.Key())
		c.Misses++
		return nil, nil
	}
	c.Hits++
	rates := row.rates
	return &rates, nil
}

func (c *RateCache) Generation(_ context.Context, tuple domain.RateTuple) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(tuple.Key()), nil
}

func (c *RateCache) generationLocked(key string) string {
	return fmt.Sprintf("%d.%d", c.allGen, c.gens[key])
}

// SetIfGeneration stores rates unless their tuple was invalidated since
// generation was read.
func (c *RateCache) SetIfGeneration(_ context.Context, rates domain.RateCollection, generation string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := rates.Tuple.Key()
	if c.generationLocked(key) != generation {
		c.Skipped++
		return false, nil
	}
	entry := rateCacheEntry{rates: rates}
	if ttl > 0 {
		entry.expiresAt = c.nowFn().Add(ttl)
	}
	c.rows[key] = entry
	return true, nil
}

func (c *RateCache) Delete(_ context.Context, tuple domain.RateTuple) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[tuple.Key()]++
	delete(c.rows, tuple.Key())
	return nil
}

func (c *RateCache) DeleteAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allGen++
	c.rows = map[string]rateCacheEntry{}
	return nil
}
