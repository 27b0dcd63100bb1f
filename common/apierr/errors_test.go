package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsUnwrapsWrappedError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("blob put failed", cause)
	wrapped := fmt.Errorf("upload: %w", err)

	extracted, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeStorage, extracted.Code)
	assert.ErrorIs(t, wrapped, cause)
}

func TestAsRejectsPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, ServiceUnavailable("circuit open", 60).IsTransient())
	assert.True(t, Timeout("deadline exceeded", nil).IsTransient())
	assert.True(t, VisionService("upstream 503", nil, nil).IsTransient())
	assert.False(t, Validation("bad mime", nil).IsTransient())
	assert.False(t, NotFound("no such hash", nil).IsTransient())
}

func TestRateLimitExceededCarriesRetryAfter(t *testing.T) {
	err := RateLimitExceeded(30)
	require.NotNil(t, err.RetryAfterSeconds)
	assert.Equal(t, 30, *err.RetryAfterSeconds)
	assert.Equal(t, CodeRateLimitExceeded, err.Code)
}

func TestProcessingAttachesOperationDetails(t *testing.T) {
	err := Processing("annotate", "image_hash=abc", errors.New("decode failed"))
	assert.Equal(t, "annotate", err.Details["operation"])
	assert.Equal(t, "image_hash=abc", err.Details["context"])
	assert.Contains(t, err.Error(), "decode failed")
}
