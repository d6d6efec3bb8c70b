// Package retry wraps ledger and blob store calls in a bounded exponential
// backoff. Only transient failures are retried.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"photosync/internal/syncerr"
)

const (
	DefaultMaxAttempts     = 4
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
	defaultMultiplier      = 2.0
	defaultJitter          = 0.25
)

// Policy configures the backoff applied to one call.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *slog.Logger

	// Retryable decides whether an error is worth another attempt.
	// Defaults to syncerr.IsTransient.
	Retryable func(error) bool
}

// Default returns the policy used when nothing is configured.
func Default() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// None performs every call exactly once.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Retryable == nil {
		p.Retryable = syncerr.IsTransient
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = defaultMultiplier
	b.RandomizationFactor = defaultJitter
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	p = p.normalized()
	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.Logger.Warn("retrying after transient failure",
			"op", op,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"wait", wait,
			"err", err,
		)
	}
	return backoff.RetryNotify(operation, p.backOff(ctx), notify)
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
