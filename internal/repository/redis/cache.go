package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a JSON read-through cache over Redis. A nil *Cache is valid and
// always misses, which is how the service runs without REDIS_ADDR.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

// lookup decodes the cached value into dst. Entries that no longer decode are
// evicted and reported as a miss.
func (c *Cache) lookup(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}

	return true, nil
}

func (c *Cache) store(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// ReadThrough returns the cached value for key or calls load, caches its
// result for ttl and returns it. Concurrent misses on the same key share one
// load. Redis failures fall back to load so the cache never takes reads down.
func ReadThrough[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, error),
) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}

	var hit T
	if ok, err := c.lookup(ctx, key, &hit); err == nil && ok {
		return hit, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		var again T
		if ok, err := c.lookup(ctx, key, &again); err == nil && ok {
			return again, nil
		}

		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}

		_ = c.store(ctx, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("redis.ReadThrough: cached %s holds %T", key, v)
	}

	return out, nil
}

func (c *Cache) del(ctx context.Context, keys ...string) error {
	if !c.enabled() {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Cache) InvalidateDeparture(ctx context.Context, departureID int64) error {
	return c.del(ctx, KeyDeparture(departureID), KeyDepartureAvailability(departureID))
}

func (c *Cache) InvalidatePackage(ctx context.Context, packageID int64) error {
	return c.del(ctx, KeyPackage(packageID))
}
