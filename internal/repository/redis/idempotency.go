package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const idemNS = ns + ":idem"

const (
	idemLock   = "LOCK"
	idemResult = "RES:"
)

// KeyIdem scopes a client-supplied Idempotency-Key to one operation. The
// subject narrows it further, e.g. to a booking ID for payments.
func KeyIdem(operation, subject, idemKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", idemNS, operation, subject, idemKey)
}

type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Claim returns a stored response if the key already completed. Otherwise it
// tries to take the in-flight lock; claimed is false when another request
// holds it.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, lockTTL time.Duration) (stored string, done, claimed bool, err error) {
	if stored, done, err = s.GetResult(ctx, key); err != nil || done {
		return stored, done, false, err
	}

	claimed, err = s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
	if err != nil || claimed {
		return "", false, claimed, err
	}

	// The holder may have finished between the two reads.
	stored, done, err = s.GetResult(ctx, key)
	return stored, done, false, err
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	return s.rdb.Set(ctx, key, idemResult+jsonPayload, s.ttl).Err()
}

func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if strings.HasPrefix(v, idemResult) {
		return strings.TrimPrefix(v, idemResult), true, nil
	}

	return "", false, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
