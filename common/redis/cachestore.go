// Package redis adapts go-redis for use as the Result Cache's remote
// backing store. Folded directly onto the raw client — the teacher's
// separate Client wrapper (streams, hashes, pub/sub, pipelines) served its
// job-queue/workflow use cases, none of which this domain has a caller
// for, so CacheStore owns the client instead of going through a layer
// that added nothing beyond what go-redis already provides.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CacheStore adapts a raw go-redis client to the common/cache.Store
// contract: binary-safe Get/Set/Delete against the remote backing store
// the Result Cache (C4) fronts with its in-process LRU.
type CacheStore struct {
	client *goredis.Client
}

// NewCacheStore wraps client for use as a cache.Store.
func NewCacheStore(client *goredis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Get returns the raw bytes for key, (nil, false, nil) on a clean miss, or
// a non-nil error on a genuine transport fault (the caller, common/cache,
// treats any error as a fail-open miss per §4.4).
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key with the given TTL (0 means no expiry).
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes one or more keys.
func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
