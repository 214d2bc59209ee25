package redis

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadClient points at a port nothing listens on, so every command fails fast.
func deadClient(t *testing.T) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

// liveClient connects to TOURGO_TEST_REDIS_ADDR and skips when it is unset.
func liveClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TOURGO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOURGO_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	return rdb
}

type pkg struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestReadThrough_NilCacheLoads(t *testing.T) {
	var c *Cache

	var calls atomic.Int32
	load := func(context.Context) (pkg, error) {
		calls.Add(1)
		return pkg{ID: 1, Name: "Srimangal"}, nil
	}

	for range 2 {
		got, err := ReadThrough(context.Background(), c, KeyPackage(1), time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "Srimangal", got.Name)
	}
	assert.Equal(t, int32(2), calls.Load())

	assert.NoError(t, c.InvalidatePackage(context.Background(), 1))
	assert.NoError(t, c.InvalidateDeparture(context.Background(), 1))
}

func TestReadThrough_RedisDownFallsBackToLoad(t *testing.T) {
	c := New(deadClient(t))

	got, err := ReadThrough(context.Background(), c, KeyPackage(7), time.Minute, func(context.Context) (pkg, error) {
		return pkg{ID: 7, Name: "Rangamati"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)

	boom := errors.New("db down")
	_, err = ReadThrough(context.Background(), c, KeyPackage(8), time.Minute, func(context.Context) (pkg, error) {
		return pkg{}, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestReadThrough_CachesAndEvictsCorrupt(t *testing.T) {
	rdb := liveClient(t)
	c := New(rdb)
	ctx := context.Background()
	key := KeyPackage(int64(uuid.New().ID()))
	t.Cleanup(func() { _ = rdb.Del(ctx, key).Err() })

	var calls atomic.Int32
	load := func(context.Context) (pkg, error) {
		calls.Add(1)
		return pkg{ID: 3, Name: "Kuakata"}, nil
	}

	for range 3 {
		got, err := ReadThrough(ctx, c, key, time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "Kuakata", got.Name)
	}
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, rdb.Set(ctx, key, "{not json", time.Minute).Err())
	_, err := ReadThrough(ctx, c, key, time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want string
	}{
		{0, "1"},
		{200 * time.Millisecond, "1"},
		{time.Second, "1"},
		{1500 * time.Millisecond, "2"},
		{59 * time.Second, "59"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Decision{RetryAfter: tt.wait}.RetryAfterSeconds(), tt.wait)
	}
}

func TestSlidingWindowLimiter_Defaults(t *testing.T) {
	l := NewSlidingWindowLimiter(nil, "bookings", 0, 0)
	assert.Equal(t, 10, l.Limit())
	assert.Equal(t, time.Minute, l.window)
}

func TestSlidingWindowLimiter_RedisDownErrors(t *testing.T) {
	l := NewSlidingWindowLimiter(deadClient(t), "bookings", 2, time.Minute)

	_, err := l.Allow(context.Background(), "ip:10.0.0.1")
	assert.Error(t, err)
}

func TestSlidingWindowLimiter_RejectedHitsAreNotRecorded(t *testing.T) {
	rdb := liveClient(t)
	ctx := context.Background()

	clock := time.UnixMilli(1_700_000_000_000)
	l := NewSlidingWindowLimiter(rdb, "test-"+uuid.NewString(), 2, time.Minute)
	l.now = func() time.Time { return clock }
	subject := "customer:42"
	t.Cleanup(func() { _ = rdb.Del(ctx, KeyRateLimit(l.scope, subject)).Err() })

	d, err := l.Allow(ctx, subject)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	clock = clock.Add(10 * time.Second)
	d, err = l.Allow(ctx, subject)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Zero(t, d.Remaining)

	// Rejected hits while the window is full do not push the reset back.
	for range 5 {
		clock = clock.Add(5 * time.Second)
		d, err = l.Allow(ctx, subject)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	}
	assert.Equal(t, 25*time.Second, d.RetryAfter)

	card, err := rdb.ZCard(ctx, KeyRateLimit(l.scope, subject)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)

	// Once the first hit ages out one slot frees up.
	clock = time.UnixMilli(1_700_000_000_000).Add(time.Minute + time.Millisecond)
	d, err = l.Allow(ctx, subject)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestIdempotencyStore_Claim(t *testing.T) {
	rdb := liveClient(t)
	ctx := context.Background()
	s := NewIdempotencyStore(rdb, time.Minute)
	key := KeyIdem("bookings.create", "customer:42", uuid.NewString())
	t.Cleanup(func() { _ = rdb.Del(ctx, key).Err() })

	_, done, claimed, err := s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, claimed)

	// A concurrent retry sees the lock and neither runs nor replays.
	_, done, claimed, err = s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, done)
	assert.False(t, claimed)

	require.NoError(t, s.SaveResult(ctx, key, `{"id":"b-1"}`))

	stored, done, claimed, err := s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, claimed)
	assert.JSONEq(t, `{"id":"b-1"}`, stored)
}

func TestIdempotencyStore_ReleaseAllowsRetry(t *testing.T) {
	rdb := liveClient(t)
	ctx := context.Background()
	s := NewIdempotencyStore(rdb, time.Minute)
	key := KeyIdem("bookings.payment", uuid.NewString(), "k-1")
	t.Cleanup(func() { _ = rdb.Del(ctx, key).Err() })

	_, _, claimed, err := s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, s.Release(ctx, key))

	_, _, claimed, err = s.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotencyStore_RedisDownErrors(t *testing.T) {
	s := NewIdempotencyStore(deadClient(t), time.Minute)

	_, _, _, err := s.Claim(context.Background(), KeyIdem("op", "s", "k"), time.Minute)
	assert.Error(t, err)
}
