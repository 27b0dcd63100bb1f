package retrypolicy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleepPolicy() Policy {
	p := Default()
	p.Sleep = func(time.Duration) {}
	p.Rand = func() float64 { return 0.5 }
	return p
}

func TestDoSucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	p := noSleepPolicy()
	calls := 0
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrorsUntilSuccess(t *testing.T) {
	p := noSleepPolicy()
	calls := 0
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apierr.Timeout("deadline", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsImmediatelyOnNonTransientError(t *testing.T) {
	p := noSleepPolicy()
	calls := 0
	validationErr := apierr.Validation("bad mime type", nil)
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		calls++
		return validationErr
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, validationErr, err)
}

func TestDoExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	p := noSleepPolicy()
	p.MaxAttempts = 3
	calls := 0
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		calls++
		return apierr.ServiceUnavailable("circuit open", 60)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	p := noSleepPolicy()
	p.Sleep = func(d time.Duration) { time.Sleep(d) }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, nil, func(ctx context.Context) error {
		calls++
		return errors.New("should not run")
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestDelayRespectsMaxCap(t *testing.T) {
	p := Default()
	p.Rand = func() float64 { return 0.5 }
	p.Max = 1 * time.Second
	d := p.delay(10) // would be huge uncapped
	assert.LessOrEqual(t, d, p.Max+p.Max/4)
}
