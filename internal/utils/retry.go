package utils

import (
	"context"
	"time"
)

// Retry runs fn up to attempts+1 times, sleeping backoff*n before the n-th retry.
// Only errors accepted by IsTransient are retried.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) || attempt >= attempts {
			return err
		}
		wait := backoff * time.Duration(attempt+1)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
