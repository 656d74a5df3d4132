package fetch

import (
	"context"
	"time"
)

// Policy is a caller-chosen retry budget with exponential backoff.
type Policy struct {
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

var retrySleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or the
// policy's retries are used up. Only Unreachable and Timeout failures are
// retried.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	backoff := p.Backoff
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= p.Retries || !Retryable(err) || ctx.Err() != nil {
			return err
		}
		if backoff > 0 {
			if serr := retrySleep(ctx, backoff); serr != nil {
				return err
			}
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	}
}
