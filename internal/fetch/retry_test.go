package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubRetrySleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var sleeps []time.Duration
	orig := retrySleep
	t.Cleanup(func() { retrySleep = orig })
	retrySleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return &sleeps
}

func TestRetryBacksOffOnRetryableErrors(t *testing.T) {
	sleeps := stubRetrySleep(t)
	calls := 0
	err := Retry(context.Background(), Policy{Retries: 3, Backoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 4 {
			return &Error{Kind: KindUnreachable, URL: "u", Err: errors.New("reset")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, *sleeps)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	stubRetrySleep(t)
	calls := 0
	err := Retry(context.Background(), Policy{Retries: 5}, func(context.Context) error {
		calls++
		return &Error{Kind: KindHashMismatch, URL: "u"}
	})
	require.ErrorIs(t, err, ErrHashMismatch)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	stubRetrySleep(t)
	calls := 0
	err := Retry(context.Background(), Policy{Retries: 2, Backoff: time.Millisecond}, func(context.Context) error {
		calls++
		return &Error{Kind: KindTimeout, URL: "u"}
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, calls)
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Policy{Retries: 5, Backoff: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return &Error{Kind: KindUnreachable, URL: "u"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
