package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:   max,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_GivesUpAndWrapsLastError(t *testing.T) {
	last := errors.New("still down")
	attempts := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		attempts++
		return last
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetry_RetryIfStopsOnPermanentError(t *testing.T) {
	cfg := fastRetry(5)
	cfg.RetryIf = IsRetryable

	attempts := 0
	_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		return 0, NotFoundError("x")
	})

	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, fastRetry(3), func() error {
		attempts++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}
