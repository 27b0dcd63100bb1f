// Package cache implements the tiered Result Cache (C4): a remote
// key-value backing store (assumed shared across instances) fronted by an
// in-process LRU, sharded by a hash of the encoded key, for sub-ms reads
// of hot keys. It carries
// per-kind TTL, a per-kind version counter for bulk invalidation,
// weighted-score LRU eviction, and single-flight stampede suppression via
// GetOrCompute (§4.4).
//
// Adapted from the teacher's common/cache.MemoryCache (a flat TTL-only
// map with a cleanup goroutine) generalized into the two-tier engine this
// component needs. Single-flight is an in-process inflight map; there is no
// distributed lock, so callers on different instances compute separately.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/logger"
	"golang.org/x/time/rate"
)

const numShards = 8

// Store is the remote backing store contract (Redis in production).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// VersionStore persists the per-kind monotonic version counters (§3
// CacheKey, resolved Open Question 3: durable, one row per kind).
type VersionStore interface {
	CurrentVersion(ctx context.Context, kind string) (int64, error)
	BumpVersion(ctx context.Context, kind string) (int64, error)
}

// EntryMeta is the non-payload metadata carried alongside every entry.
type EntryMeta struct {
	Version    int64
	Params     string
	ComputedAt time.Time
}

// CacheKey is the structured tuple described in §3; Version is resolved by
// the cache at access time from VersionStore, not supplied by the caller.
type CacheKey struct {
	Kind             string
	ImageHash        string
	ParamFingerprint string
}

type cacheEntry struct {
	key          string
	kind         string
	value        []byte
	meta         EntryMeta
	createdAt    time.Time
	lastAccessAt time.Time
	ttl          time.Duration
	sizeBytes    int64
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

type shard struct {
	mu    sync.RWMutex
	index map[string]*list.Element
	order *list.List // front = most recently touched
	bytes int64
}

func newShard() *shard {
	return &shard{index: make(map[string]*list.Element), order: list.New()}
}

// EvictionWeights mirror config.EvictionWeights; duplicated here rather
// than imported to avoid a dependency from this low-level package back up
// to common/config.
type EvictionWeights struct {
	TTL     float64
	Kind    float64
	Recency float64
}

type kindStats struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// ResultCache is the C4 engine.
type ResultCache struct {
	store    Store
	versions VersionStore
	log      *logger.Logger

	shards [numShards]*shard

	ttls       map[string]time.Duration
	weights    EvictionWeights
	maxBytes   int64
	totalBytes atomic.Int64

	singleFlightTimeout time.Duration

	inflightMu sync.Mutex
	inflight   map[string]*call

	versionCacheMu sync.RWMutex
	versionCache   map[string]int64

	keysMu          sync.Mutex
	keysByImageHash map[string]map[string]struct{}

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	perKind   sync.Map // kind -> *kindStats
}

type call struct {
	done  chan struct{}
	value []byte
	meta  EntryMeta
	err   error
}

// New constructs a ResultCache.
func New(store Store, versions VersionStore, log *logger.Logger, ttls map[string]time.Duration, maxBytes int64, weights EvictionWeights, singleFlightTimeout time.Duration) *ResultCache {
	c := &ResultCache{
		store:               store,
		versions:            versions,
		log:                 log,
		ttls:                ttls,
		weights:             weights,
		maxBytes:            maxBytes,
		singleFlightTimeout: singleFlightTimeout,
		inflight:            make(map[string]*call),
		versionCache:        make(map[string]int64),
		keysByImageHash:     make(map[string]map[string]struct{}),
	}
	for i := range c.shards {
		c.shards[i] = newShard()
	}
	return c
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}

func (c *ResultCache) shardFor(key string) *shard {
	return c.shards[shardIndex(key)]
}

func (c *ResultCache) statsFor(kind string) *kindStats {
	v, _ := c.perKind.LoadOrStore(kind, &kindStats{})
	return v.(*kindStats)
}

// currentVersion resolves the kind's current version, consulting a local
// cache that InvalidateVersion explicitly busts.
func (c *ResultCache) currentVersion(ctx context.Context, kind string) (int64, error) {
	c.versionCacheMu.RLock()
	if v, ok := c.versionCache[kind]; ok {
		c.versionCacheMu.RUnlock()
		return v, nil
	}
	c.versionCacheMu.RUnlock()

	v, err := c.versions.CurrentVersion(ctx, kind)
	if err != nil {
		return 0, err
	}

	c.versionCacheMu.Lock()
	c.versionCache[kind] = v
	c.versionCacheMu.Unlock()
	return v, nil
}

// BuildKey produces the "{kind}:v{version}:{image_hash}:{param_fingerprint}"
// encoding from §4.4.
func (c *ResultCache) BuildKey(ctx context.Context, key CacheKey) (string, error) {
	v, err := c.currentVersion(ctx, key.Kind)
	if err != nil {
		return "", apierr.Cache("failed to resolve cache version", err)
	}
	return fmt.Sprintf("%s:v%d:%s:%s", key.Kind, v, key.ImageHash, key.ParamFingerprint), nil
}

// Get looks up an entry: front LRU first, then the remote store. Both a
// cache fault and a genuine MISS return (nil, false, nil) — a CacheError is
// swallowed here per §4.4/§7; the caller proceeds as if MISS.
func (c *ResultCache) Get(ctx context.Context, key CacheKey) ([]byte, bool, error) {
	encoded, err := c.BuildKey(ctx, key)
	if err != nil {
		c.log.Warn("cache key resolution failed, treating as miss", "kind", key.Kind, "error", err)
		return nil, false, nil
	}
	return c.get(ctx, key.Kind, encoded)
}

func (c *ResultCache) get(ctx context.Context, kind, encoded string) ([]byte, bool, error) {
	stats := c.statsFor(kind)

	if entry, ok := c.lruGet(encoded); ok {
		c.hits.Add(1)
		stats.hits.Add(1)
		return entry.value, true, nil
	}

	value, found, err := c.store.Get(ctx, encoded)
	if err != nil {
		c.log.Warn("result cache backing store unavailable, failing open", "key", encoded, "error", err)
		c.misses.Add(1)
		stats.misses.Add(1)
		return nil, false, nil
	}
	if !found {
		c.misses.Add(1)
		stats.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	stats.hits.Add(1)
	// Backfill the in-process LRU so the next read is sub-ms; TTL is
	// approximated from the kind's configured value since the remote store
	// only returns bytes, not its own expiry metadata.
	c.lruPut(kind, encoded, value, EntryMeta{}, c.ttlFor(kind))
	return value, true, nil
}

// Put stores an artifact under key with the given TTL.
func (c *ResultCache) Put(ctx context.Context, key CacheKey, artifact []byte, ttl time.Duration, meta EntryMeta) error {
	encoded, err := c.BuildKey(ctx, key)
	if err != nil {
		return nil // fail open
	}
	if err := c.store.Set(ctx, encoded, artifact, ttl); err != nil {
		c.log.Warn("result cache backing store write failed, degrading to uncached", "key", encoded, "error", err)
		return nil // a CacheError is never fatal; the write is simply skipped
	}
	c.lruPut(key.Kind, encoded, artifact, meta, ttl)
	c.registerKey(key.ImageHash, encoded)
	return nil
}

// registerKey remembers which encoded keys were written under imageHash, so
// DeleteImage/ClearCache(image_hash) can reach entries keyed by a
// param_fingerprint the caller never has to hand back in (§6 DeleteImage
// "removes ... all cache entries under hash"). Versions superseded by
// InvalidateVersion are pruned naturally since their keys simply stop being
// reachable by BuildKey; stale entries in this index are harmless no-ops on
// delete.
func (c *ResultCache) registerKey(imageHash, encoded string) {
	if imageHash == "" {
		return
	}
	c.keysMu.Lock()
	defer c.keysMu.Unlock()
	set, ok := c.keysByImageHash[imageHash]
	if !ok {
		set = make(map[string]struct{})
		c.keysByImageHash[imageHash] = set
	}
	set[encoded] = struct{}{}
}

func (c *ResultCache) dropFromLRU(encoded string) {
	sh := c.shardFor(encoded)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	elem, ok := sh.index[encoded]
	if !ok {
		return
	}
	entry := elem.Value.(*cacheEntry)
	sh.order.Remove(elem)
	delete(sh.index, encoded)
	sh.bytes -= entry.sizeBytes
	c.totalBytes.Add(-entry.sizeBytes)
}

// DeleteByImageHash removes every cache entry this process has written for
// imageHash, across all kinds and param fingerprints (§6 DeleteImage,
// ClearCache(image_hash)).
func (c *ResultCache) DeleteByImageHash(ctx context.Context, imageHash string) (int, error) {
	c.keysMu.Lock()
	set := c.keysByImageHash[imageHash]
	delete(c.keysByImageHash, imageHash)
	c.keysMu.Unlock()

	if len(set) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.log.Warn("failed to delete backing store entries for image hash", "image_hash", imageHash, "error", err)
	}
	for _, k := range keys {
		c.dropFromLRU(k)
	}
	return len(keys), nil
}

// Flush removes every entry this process knows about, used by
// ClearCache() with no image_hash filter.
func (c *ResultCache) Flush(ctx context.Context) (int, error) {
	c.keysMu.Lock()
	var keys []string
	for _, set := range c.keysByImageHash {
		for k := range set {
			keys = append(keys, k)
		}
	}
	c.keysByImageHash = make(map[string]map[string]struct{})
	c.keysMu.Unlock()

	if len(keys) > 0 {
		if err := c.store.Delete(ctx, keys...); err != nil {
			c.log.Warn("failed to delete backing store entries during flush", "error", err)
		}
	}

	count := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		count += len(sh.index)
		sh.index = make(map[string]*list.Element)
		sh.order = list.New()
		c.totalBytes.Add(-sh.bytes)
		sh.bytes = 0
		sh.mu.Unlock()
	}
	return count, nil
}

// Touch refreshes an entry's recency without changing its value.
func (c *ResultCache) Touch(ctx context.Context, key CacheKey) {
	encoded, err := c.BuildKey(ctx, key)
	if err != nil {
		return
	}
	_, _ = c.lruGet(encoded) // lruGet already bumps recency on hit
}

// InvalidateVersion bumps the kind's version counter; subsequent Gets for
// older versions observe MISS because the encoded key changes.
func (c *ResultCache) InvalidateVersion(ctx context.Context, kind string) (int64, error) {
	v, err := c.versions.BumpVersion(ctx, kind)
	if err != nil {
		return 0, apierr.Cache("failed to bump cache version", err)
	}
	c.versionCacheMu.Lock()
	c.versionCache[kind] = v
	c.versionCacheMu.Unlock()
	return v, nil
}

func (c *ResultCache) ttlFor(kind string) time.Duration {
	if ttl, ok := c.ttls[kind]; ok {
		return ttl
	}
	return time.Hour
}

// GetOrCompute is the stampede-suppressing entry point: concurrent callers
// for the same key share one computeFn invocation (§4.4, §8 property 5).
func (c *ResultCache) GetOrCompute(ctx context.Context, key CacheKey, ttl time.Duration, computeFn func(ctx context.Context) ([]byte, EntryMeta, error)) ([]byte, bool, error) {
	encoded, err := c.BuildKey(ctx, key)
	if err != nil {
		value, _, cerr := computeFn(ctx)
		return value, false, cerr
	}

	if value, hit, _ := c.get(ctx, key.Kind, encoded); hit {
		return value, true, nil
	}

	c.inflightMu.Lock()
	if existing, ok := c.inflight[encoded]; ok {
		c.inflightMu.Unlock()
		return c.wait(ctx, existing)
	}

	leader := &call{done: make(chan struct{})}
	c.inflight[encoded] = leader
	c.inflightMu.Unlock()

	go c.run(leader, encoded, key, ttl, computeFn)

	return c.wait(ctx, leader)
}

func (c *ResultCache) run(leader *call, encoded string, key CacheKey, ttl time.Duration, computeFn func(ctx context.Context) ([]byte, EntryMeta, error)) {
	// Detached from the triggering request's context: a slow or cancelled
	// caller must not abort the computation other waiters depend on.
	bg, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	value, meta, err := computeFn(bg)
	// The result is stored before the inflight entry is released, so a
	// caller arriving after release finds it instead of recomputing.
	// A computation error is never cached; the next caller retries (§4.4).
	if err == nil {
		_ = c.Put(bg, key, value, ttl, meta)
	}
	leader.value, leader.meta, leader.err = value, meta, err

	c.inflightMu.Lock()
	delete(c.inflight, encoded)
	c.inflightMu.Unlock()

	close(leader.done)
}

func (c *ResultCache) wait(ctx context.Context, leader *call) ([]byte, bool, error) {
	timer := time.NewTimer(c.singleFlightTimeout)
	defer timer.Stop()

	select {
	case <-leader.done:
		return leader.value, false, leader.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-timer.C:
		return nil, false, apierr.Timeout("single-flight wait exceeded single_flight_timeout", nil)
	}
}

// lruGet returns a live (non-expired) entry and bumps its recency.
func (c *ResultCache) lruGet(key string) (*cacheEntry, bool) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	elem, ok := sh.index[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if entry.expired(time.Now()) {
		sh.order.Remove(elem)
		delete(sh.index, key)
		sh.bytes -= entry.sizeBytes
		c.totalBytes.Add(-entry.sizeBytes)
		return nil, false
	}
	entry.lastAccessAt = time.Now()
	sh.order.MoveToFront(elem)
	return entry, true
}

func (c *ResultCache) lruPut(kind, key string, value []byte, meta EntryMeta, ttl time.Duration) {
	sh := c.shardFor(key)
	now := time.Now()
	size := int64(len(value))

	sh.mu.Lock()
	if elem, ok := sh.index[key]; ok {
		old := elem.Value.(*cacheEntry)
		sh.bytes -= old.sizeBytes
		c.totalBytes.Add(-old.sizeBytes)
		sh.order.Remove(elem)
		delete(sh.index, key)
	}
	entry := &cacheEntry{
		key: key, kind: kind, value: value, meta: meta,
		createdAt: now, lastAccessAt: now, ttl: ttl, sizeBytes: size,
	}
	elem := sh.order.PushFront(entry)
	sh.index[key] = elem
	sh.bytes += size
	sh.mu.Unlock()

	c.totalBytes.Add(size)

	if c.maxBytes > 0 && c.totalBytes.Load() > c.maxBytes {
		evicted, bytesFreed := c.evict(int64(float64(c.maxBytes) * 0.8))
		if evicted > 0 {
			c.log.Debug("result cache LRU eviction", "evicted", evicted, "bytes_freed", bytesFreed)
		}
	}
}

func kindWeight(kind string) float64 {
	switch kind {
	case "extract":
		return 1.0
	case "segment":
		return 0.9
	case "nature":
		return 0.6
	case "annotate":
		return 0.5
	case "detect", "faces":
		return 0.4
	case "batch":
		return 0.1
	default:
		return 0.3
	}
}

// evictionScore implements §4.4's weighted priority — lower is evicted first.
func (c *ResultCache) evictionScore(e *cacheEntry, now time.Time) float64 {
	remainingRatio := 0.0
	if e.ttl > 0 {
		remaining := e.ttl - now.Sub(e.createdAt)
		remainingRatio = math.Max(0, float64(remaining)/float64(e.ttl))
	}
	const recencyHalfLife = 24 * time.Hour
	recency := math.Exp(-float64(now.Sub(e.lastAccessAt)) / float64(recencyHalfLife))

	return c.weights.TTL*remainingRatio + c.weights.Kind*kindWeight(e.kind) + c.weights.Recency*recency
}

// evict drops the lowest-scoring entries across all shards until total
// bytes falls at or below target.
func (c *ResultCache) evict(target int64) (count int, bytesFreed int64) {
	now := time.Now()
	for c.totalBytes.Load() > target {
		var victimShard *shard
		var victimKey string
		victimScore := math.Inf(1)

		for _, sh := range c.shards {
			sh.mu.RLock()
			for e := sh.order.Back(); e != nil; e = e.Prev() {
				entry := e.Value.(*cacheEntry)
				score := c.evictionScore(entry, now)
				if score < victimScore {
					victimScore = score
					victimShard = sh
					victimKey = entry.key
				}
			}
			sh.mu.RUnlock()
		}

		if victimShard == nil {
			break
		}

		victimShard.mu.Lock()
		elem, ok := victimShard.index[victimKey]
		if !ok {
			victimShard.mu.Unlock()
			continue
		}
		entry := elem.Value.(*cacheEntry)
		victimShard.order.Remove(elem)
		delete(victimShard.index, victimKey)
		victimShard.bytes -= entry.sizeBytes
		victimShard.mu.Unlock()

		c.totalBytes.Add(-entry.sizeBytes)
		c.evictions.Add(1)
		c.statsFor(entry.kind).evictions.Add(1)
		count++
		bytesFreed += entry.sizeBytes
	}
	return
}

// Cleanup purges expired entries from the in-process LRU (the remote store
// relies on its own TTL expiry and needs no sweep).
func (c *ResultCache) Cleanup() (purged int) {
	now := time.Now()
	for _, sh := range c.shards {
		sh.mu.Lock()
		var next *list.Element
		for e := sh.order.Front(); e != nil; e = next {
			next = e.Next()
			entry := e.Value.(*cacheEntry)
			if entry.expired(now) {
				sh.order.Remove(e)
				delete(sh.index, entry.key)
				sh.bytes -= entry.sizeBytes
				c.totalBytes.Add(-entry.sizeBytes)
				purged++
			}
		}
		sh.mu.Unlock()
	}
	return
}

// WarmItem is one (image, kind) pair Warm should pre-compute.
type WarmItem struct {
	Key CacheKey
	TTL time.Duration
}

// Warm pre-computes entries at a bounded rate so background warming never
// competes with live traffic for vision-provider quota.
func (c *ResultCache) Warm(ctx context.Context, items []WarmItem, limiter *rate.Limiter, computeFn func(ctx context.Context, item WarmItem) ([]byte, EntryMeta, error)) {
	for _, item := range items {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if _, hit, _ := c.Get(ctx, item.Key); hit {
			continue
		}
		_, _, err := c.GetOrCompute(ctx, item.Key, item.TTL, func(ctx context.Context) ([]byte, EntryMeta, error) {
			return computeFn(ctx, item)
		})
		if err != nil {
			c.log.Debug("cache warm item failed", "kind", item.Key.Kind, "image_hash", item.Key.ImageHash, "error", err)
		}
	}
}

// Stats is the snapshot returned by the Stats operation (§6).
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Bytes     int64
	HitRate   float64
	PerKind   map[string]KindStats
}

// KindStats is the per-kind breakdown within Stats.
type KindStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats reports cache-wide and per-kind counters.
func (c *ResultCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	perKind := make(map[string]KindStats)
	c.perKind.Range(func(k, v any) bool {
		ks := v.(*kindStats)
		perKind[k.(string)] = KindStats{
			Hits:      ks.hits.Load(),
			Misses:    ks.misses.Load(),
			Evictions: ks.evictions.Load(),
		}
		return true
	})

	return Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		Bytes:     c.totalBytes.Load(),
		HitRate:   hitRate,
		PerKind:   perKind,
	}
}
