/*
Package rediscache provides a Redis-backed latest-month cache.

PURPOSE:
  Shares the "most recent duration month with data" across server
  instances. It implements allowance.LatestMonthCache with the usual
  cache-aside flow:

    GET key  -> hit: parse YYYY-MM
             -> miss: singleflight(compute) -> SET key value EX ttl

  Invalidate bumps a version key, then DELs the value. A computed month
  is written by a script that checks the version first, so a compute that
  straddles an Invalidate on any instance never writes back a stale value.
  "No data" results are never written.

  The compute is shared by concurrent callers and runs detached from any
  one caller's context. A caller that gives up returns its own context
  error; the others still get the result.

FAILURE MODE:
  A Redis read error is logged and treated as a miss, so reports keep
  working with Redis down. Write errors are logged and swallowed.

SEE ALSO:
  - allowance/cache.go: Interface and the in-process MemoryCache
  - service/ingest.go: Invalidates after uploads and corrections
*/
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/shift-allowance/allowance"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultKey = "shift-allowance:latest-month"
	DefaultTTL = time.Hour
)

// storeIfCurrent sets KEYS[1] only while KEYS[2] still holds the version
// read before computing. A missing version counts as "0".
const storeIfCurrent = `
if (redis.call('GET', KEYS[2]) or '0') == ARGV[1] then
  return redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return false
`

// LatestMonthCache implements allowance.LatestMonthCache on Redis.
type LatestMonthCache struct {
	rdb        *redis.Client
	key        string
	versionKey string
	ttl        time.Duration
	log        *zap.Logger
	sf         singleflight.Group
}

var _ allowance.LatestMonthCache = (*LatestMonthCache)(nil)

// NewLatestMonthCache creates a cache under key with the given TTL.
// Empty key and non-positive TTL use the defaults.
func NewLatestMonthCache(rdb *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *LatestMonthCache {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LatestMonthCache{
		rdb:        rdb,
		key:        key,
		versionKey: key + ":version",
		ttl:        ttl,
		log:        logger.Named("latest-month-cache"),
	}
}

func (c *LatestMonthCache) Key() string { return c.key }

func (c *LatestMonthCache) VersionKey() string { return c.versionKey }

// Cached reads the stored value without computing.
func (c *LatestMonthCache) Cached(ctx context.Context) (allowance.Month, bool, error) {
	val, err := c.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return allowance.Month{}, false, nil
	}
	if err != nil {
		return allowance.Month{}, false, fmt.Errorf("failed to read %s: %w", c.key, err)
	}
	m, err := allowance.ParseMonth(val)
	if err != nil {
		return allowance.Month{}, false, fmt.Errorf("corrupt cached month %q: %w", val, err)
	}
	return m, true, nil
}

// Invalidate bumps the version and deletes the cached value.
func (c *LatestMonthCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.versionKey).Err(); err != nil {
		return fmt.Errorf("failed to bump %s: %w", c.versionKey, err)
	}
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", c.key, err)
	}
	c.log.Debug("latest month invalidated", zap.String("key", c.key))
	return nil
}

func (c *LatestMonthCache) GetOrCompute(ctx context.Context, compute allowance.ComputeLatest) (allowance.Month, bool, error) {
	m, ok, err := c.Cached(ctx)
	if err != nil {
		c.log.Warn("cache read failed, computing", zap.Error(err))
	} else if ok {
		return m, true, nil
	}

	type result struct {
		month allowance.Month
		ok    bool
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(c.key, func() (interface{}, error) {
		version, versionErr := c.version(flightCtx)
		if versionErr != nil {
			c.log.Warn("cache version read failed, result will not be stored", zap.Error(versionErr))
		}

		m, ok, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		if ok && versionErr == nil {
			c.store(flightCtx, m, version)
		}
		return result{month: m, ok: ok}, nil
	})

	select {
	case <-ctx.Done():
		return allowance.Month{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return allowance.Month{}, false, r.Err
		}
		res := r.Val.(result)
		return res.month, res.ok, nil
	}
}

func (c *LatestMonthCache) version(ctx context.Context) (string, error) {
	v, err := c.rdb.Get(ctx, c.versionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", c.versionKey, err)
	}
	return v, nil
}

func (c *LatestMonthCache) store(ctx context.Context, m allowance.Month, version string) {
	err := c.rdb.Eval(ctx, storeIfCurrent, []string{c.key, c.versionKey}, version, m.String(), c.ttl.Milliseconds()).Err()
	switch {
	case errors.Is(err, redis.Nil):
		c.log.Debug("latest month invalidated while computing, not stored", zap.String("key", c.key))
	case err != nil:
		c.log.Warn("cache write failed", zap.String("key", c.key), zap.Error(err))
	}
}
