package graph

import (
	"context"
	"fmt"
	"time"
)

// Middleware wraps a node handler. Middleware changes how a handler runs
// (retries, deadlines, instrumentation) without changing what it computes.
type Middleware[S any] func(next NodeFunc[S]) NodeFunc[S]

// Chain applies middleware so that mw[0] is the outermost wrapper:
// mw[0].pre -> mw[1].pre -> fn -> mw[1].post -> mw[0].post.
func Chain[S any](fn NodeFunc[S], mw ...Middleware[S]) NodeFunc[S] {
	for i := len(mw) - 1; i >= 0; i-- {
		fn = mw[i](fn)
	}
	return fn
}

// Retry re-runs a failing handler up to attempts times in total, sleeping
// backoff between attempts. Context cancellation stops the retries.
func Retry[S any](attempts int, backoff time.Duration) Middleware[S] {
	if attempts < 1 {
		attempts = 1
	}
	return func(next NodeFunc[S]) NodeFunc[S] {
		return func(ctx context.Context, state S) (S, error) {
			var lastErr error
			for i := 0; i < attempts; i++ {
				if i > 0 && backoff > 0 {
					t := time.NewTimer(backoff)
					select {
					case <-ctx.Done():
						t.Stop()
						var zero S
						return zero, ctx.Err()
					case <-t.C:
					}
				}
				out, err := next(ctx, state)
				if err == nil {
					return out, nil
				}
				lastErr = err
			}
			var zero S
			return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
		}
	}
}

// Timeout bounds a single handler call.
func Timeout[S any](d time.Duration) Middleware[S] {
	return func(next NodeFunc[S]) NodeFunc[S] {
		return func(ctx context.Context, state S) (S, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, state)
		}
	}
}
