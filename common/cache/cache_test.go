package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkvision/visionserve/common/logger"
)

// memStore is an in-memory Store fake standing in for Redis in tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// errStore is a Store fake whose every call fails, standing in for an
// unreachable Redis.
type errStore struct{}

func (errStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}

func (errStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("store down")
}

func (errStore) Delete(ctx context.Context, keys ...string) error {
	return errors.New("store down")
}

// memVersions is an in-memory VersionStore fake.
type memVersions struct {
	mu       sync.Mutex
	versions map[string]int64
}

func newMemVersions() *memVersions { return &memVersions{versions: make(map[string]int64)} }

func (m *memVersions) CurrentVersion(ctx context.Context, kind string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[kind], nil
}

func (m *memVersions) BumpVersion(ctx context.Context, kind string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[kind]++
	return m.versions[kind], nil
}

func newTestCache() (*ResultCache, *memStore, *memVersions) {
	store := newMemStore()
	versions := newMemVersions()
	log := logger.New("error", "json")
	ttls := map[string]time.Duration{"analyze": time.Minute}
	c := New(store, versions, log, ttls, 1<<20, EvictionWeights{}, time.Second)
	return c, store, versions
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	c, _, _ := newTestCache()
	ctx := context.Background()
	key := CacheKey{Kind: "analyze", ImageHash: "abc", ParamFingerprint: "fp1"}

	calls := 0
	computeFn := func(ctx context.Context) ([]byte, EntryMeta, error) {
		calls++
		return []byte("result"), EntryMeta{ComputedAt: time.Unix(0, 0)}, nil
	}

	value, hit, err := c.GetOrCompute(ctx, key, time.Minute, computeFn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "result", string(value))
	assert.Equal(t, 1, calls)

	value, hit, err = c.GetOrCompute(ctx, key, time.Minute, computeFn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "result", string(value))
	assert.Equal(t, 1, calls, "second call must be served from cache, not recomputed")
}

func TestGetOrComputeSuppressesStampede(t *testing.T) {
	c, _, _ := newTestCache()
	ctx := context.Background()
	key := CacheKey{Kind: "analyze", ImageHash: "stampede", ParamFingerprint: "fp1"}

	var calls int32
	var mu sync.Mutex
	release := make(chan struct{})
	computeFn := func(ctx context.Context) ([]byte, EntryMeta, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return []byte("value"), EntryMeta{}, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(ctx, key, time.Minute, computeFn)
			require.NoError(t, err)
			results[i] = string(v)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), calls, "concurrent callers for the same key must share one computeFn invocation")
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestInvalidateVersionChangesKey(t *testing.T) {
	c, store, _ := newTestCache()
	ctx := context.Background()
	key := CacheKey{Kind: "analyze", ImageHash: "abc", ParamFingerprint: "fp1"}

	require.NoError(t, c.Put(ctx, key, []byte("v0"), time.Minute, EntryMeta{}))
	keyV0, err := c.BuildKey(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, string(store.data[keyV0]), "v0")

	_, err = c.InvalidateVersion(ctx, "analyze")
	require.NoError(t, err)

	_, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit, "a version bump must orphan the previous encoded key")

	keyV1, err := c.BuildKey(ctx, key)
	require.NoError(t, err)
	assert.NotEqual(t, keyV0, keyV1)
}

func TestDeleteByImageHashRemovesAllKinds(t *testing.T) {
	c, store, _ := newTestCache()
	ctx := context.Background()

	keyA := CacheKey{Kind: "analyze", ImageHash: "abc", ParamFingerprint: "fp1"}
	keyB := CacheKey{Kind: "nature", ImageHash: "abc", ParamFingerprint: "fp2"}
	keyOther := CacheKey{Kind: "analyze", ImageHash: "other", ParamFingerprint: "fp1"}

	require.NoError(t, c.Put(ctx, keyA, []byte("a"), time.Minute, EntryMeta{}))
	require.NoError(t, c.Put(ctx, keyB, []byte("b"), time.Minute, EntryMeta{}))
	require.NoError(t, c.Put(ctx, keyOther, []byte("c"), time.Minute, EntryMeta{}))

	n, err := c.DeleteByImageHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, hit, _ := c.Get(ctx, keyA)
	assert.False(t, hit)
	_, hit, _ = c.Get(ctx, keyB)
	assert.False(t, hit)
	_, hit, _ = c.Get(ctx, keyOther)
	assert.True(t, hit, "DeleteByImageHash must not touch entries under a different hash")
	assert.Len(t, store.data, 1)
}

func TestFlushClearsEverything(t *testing.T) {
	c, store, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, CacheKey{Kind: "analyze", ImageHash: "a", ParamFingerprint: "fp"}, []byte("x"), time.Minute, EntryMeta{}))
	require.NoError(t, c.Put(ctx, CacheKey{Kind: "nature", ImageHash: "b", ParamFingerprint: "fp"}, []byte("y"), time.Minute, EntryMeta{}))

	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, store.data)
}

func TestGetFailsOpenOnBackingStoreError(t *testing.T) {
	c := New(errStore{}, newMemVersions(), logger.New("error", "json"), map[string]time.Duration{"analyze": time.Minute}, 1<<20, EvictionWeights{}, time.Second)
	ctx := context.Background()
	key := CacheKey{Kind: "analyze", ImageHash: "abc", ParamFingerprint: "fp1"}

	_, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)
}
