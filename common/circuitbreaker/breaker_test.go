package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(5, 60)

	for i := 0; i < 4; i++ {
		ok, _ := b.Allow()
		require.True(t, ok)
		b.RecordFailure()
	}
	// 4 failures: still closed
	ok, _ := b.Allow()
	require.True(t, ok)

	b.RecordFailure() // 5th failure trips it
	ok, retryAfter := b.Allow()
	assert.False(t, ok)
	assert.Greater(t, retryAfter, 0)
}

func TestBreakerHalfOpenAfterRecovery(t *testing.T) {
	b := New(1, 1)
	frozen := time.Now()
	b.now = func() time.Time { return frozen }

	ok, _ := b.Allow()
	require.True(t, ok)
	b.RecordFailure() // opens

	ok, _ = b.Allow()
	assert.False(t, ok)

	// advance past recovery window
	b.now = func() time.Time { return frozen.Add(2 * time.Second) }
	ok, _ = b.Allow()
	assert.True(t, ok, "single probe should be allowed once recovery elapses")

	// a second concurrent caller should not also get a probe
	ok, _ = b.Allow()
	assert.False(t, ok)
}

func TestBreakerSuccessResetsToClosed(t *testing.T) {
	b := New(1, 60)
	b.Allow()
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	frozen := time.Now().Add(-2 * time.Minute)
	b.openedAt.Store(frozen.UnixNano())
	ok, _ := b.Allow() // half-open probe
	require.True(t, ok)

	b.RecordSuccess()
	assert.False(t, b.IsOpen())
	ok, _ = b.Allow()
	assert.True(t, ok)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := New(1, 60)
	b.Allow()
	b.RecordFailure()

	frozen := time.Now().Add(-2 * time.Minute)
	b.openedAt.Store(frozen.UnixNano())
	ok, _ := b.Allow()
	require.True(t, ok)

	b.RecordFailure() // probe failed, re-opens
	assert.True(t, b.IsOpen())
}
