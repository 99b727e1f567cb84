package allowance

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// =============================================================================
// LATEST-MONTH CACHE - Explicit get-or-compute with explicit invalidation
// =============================================================================

// ComputeLatest produces the latest month when the cache is empty.
type ComputeLatest func(ctx context.Context) (Month, bool, error)

// LatestMonthCache caches the most recent duration month with data.
// "No data" results are never cached.
type LatestMonthCache interface {
	GetOrCompute(ctx context.Context, compute ComputeLatest) (Month, bool, error)
	Cached(ctx context.Context) (Month, bool, error)
	Invalidate(ctx context.Context) error
}

// InvalidateIfCovered drops the cached month when any written duration
// month is at or after it. Returns whether an invalidation happened.
func InvalidateIfCovered(ctx context.Context, cache LatestMonthCache, written []Month) (bool, error) {
	if cache == nil || len(written) == 0 {
		return false, nil
	}
	cached, ok, err := cache.Cached(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	for _, m := range written {
		if !m.Before(cached) {
			return true, cache.Invalidate(ctx)
		}
	}
	return false, nil
}

// CachedLatest serves LatestMonth through a cache.
type CachedLatest struct {
	Cache  LatestMonthCache
	Source LatestMonthSource
}

func (c CachedLatest) LatestMonth(ctx context.Context) (Month, bool, error) {
	if c.Cache == nil {
		return c.Source.LatestMonth(ctx)
	}
	return c.Cache.GetOrCompute(ctx, c.Source.LatestMonth)
}

// MemoryCache is the in-process LatestMonthCache. Concurrent misses share
// one compute, which keeps running when a caller's context ends. An
// Invalidate during a compute discards that compute's value.
type MemoryCache struct {
	mu         sync.Mutex
	value      Month
	ok         bool
	generation uint64
	sf         singleflight.Group
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Cached(_ context.Context) (Month, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.ok, nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.ok = Month{}, false
	c.generation++
	return nil
}

type latestResult struct {
	month Month
	ok    bool
}

func (c *MemoryCache) GetOrCompute(ctx context.Context, compute ComputeLatest) (Month, bool, error) {
	c.mu.Lock()
	if c.ok {
		m := c.value
		c.mu.Unlock()
		return m, true, nil
	}
	gen := c.generation
	c.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan("latest", func() (interface{}, error) {
		m, ok, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		if ok {
			c.mu.Lock()
			if c.generation == gen {
				c.value, c.ok = m, true
			}
			c.mu.Unlock()
		}
		return latestResult{month: m, ok: ok}, nil
	})

	select {
	case <-ctx.Done():
		return Month{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Month{}, false, r.Err
		}
		res := r.Val.(latestResult)
		return res.month, res.ok, nil
	}
}
