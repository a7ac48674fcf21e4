package utils

import (
	"context"
	"errors"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Retry calls fn up to attempts times, doubling the pause after each failure.
// It returns nil on the first success, otherwise every failure joined.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	attempts = max(attempts, 1)

	var errs []error
	for i := range attempts {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)

		if i == attempts-1 {
			break
		}
		if werr := WaitFor(ctx, delay); werr != nil {
			errs = append(errs, werr)
			break
		}
		delay *= 2
	}
	return errors.Join(errs...)
}
