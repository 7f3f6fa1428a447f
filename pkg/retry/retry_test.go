package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/leaderboard/pkg/retry"
)

func TestRetrier_SucceedsWithoutRetryingOnFirstAttempt(t *testing.T) {
	r := retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond))
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesRetryableErrorsUntilSuccess(t *testing.T) {
	r := retry.New(retry.WithMaxAttempts(5), retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0))
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return retry.Retryable(errors.New("transient"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_PermanentErrorStopsImmediately(t *testing.T) {
	r := retry.New(retry.WithMaxAttempts(5), retry.WithInitialDelay(time.Millisecond))
	calls := 0
	sentinel := errors.New("boom")
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return retry.Permanent(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ExhaustsMaxAttemptsThenReturnsUnwrappedError(t *testing.T) {
	r := retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0))
	calls := 0
	sentinel := errors.New("still failing")
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return retry.Retryable(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestRetrier_NonRetryableUnwrappedErrorStopsImmediately(t *testing.T) {
	r := retry.New(retry.WithMaxAttempts(5), retry.WithInitialDelay(time.Millisecond))
	calls := 0
	sentinel := errors.New("plain error")
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ContextCancellationStopsRetries(t *testing.T) {
	r := retry.New(retry.WithMaxAttempts(5), retry.WithInitialDelay(50*time.Millisecond), retry.WithJitter(0))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return retry.Retryable(errors.New("transient"))
	})
	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestLeaderboardUpdateRetrier_HasExpectedSchedule(t *testing.T) {
	r := retry.LeaderboardUpdateRetrier()
	require.NotNil(t, r)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return retry.Permanent(errors.New("non-connection failure"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "a permanent error must not be retried even under the update retrier")
}

func TestDoWithData_ReturnsOperationResult(t *testing.T) {
	result, err := retry.DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	}, retry.WithMaxAttempts(1))
	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}
