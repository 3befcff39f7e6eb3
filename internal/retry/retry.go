// Package retry is the single retrying executor used by the safe reader
// (fixed delay) and the optimistic updater (exponential backoff). It never
// swallows failures: once attempts are exhausted the last error is
// returned to the caller verbatim.
package retry

import (
	"context"
	"time"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Backoff yields the delay to sleep before retrying after the given
// zero-based attempt.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Fixed sleeps the same interval between every attempt.
type Fixed struct {
	Interval time.Duration
}

func (f Fixed) Delay(int) time.Duration { return f.Interval }

// Exponential sleeps Base * 2^attempt, capped at Max when Max is set.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

func (e Exponential) Delay(attempt int) time.Duration {
	d := e.Base << uint(attempt)
	if d < e.Base {
		// shift overflow; never degrade to a hot loop
		if e.Max > 0 {
			return e.Max
		}
		return e.Base
	}
	if e.Max > 0 && d > e.Max {
		d = e.Max
	}
	return d
}

// Policy parameterizes the executor. Retryable decides whether an error is
// worth another attempt; nil means every error is.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	Retryable   func(error) bool
}

// Validate reports whether the policy is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return &storeerr.ConfigurationError{Reason: "retry policy needs at least one attempt"}
	}
	if p.Backoff == nil {
		return &storeerr.ConfigurationError{Reason: "retry policy needs a backoff strategy"}
	}
	return nil
}

// Do runs op up to p.MaxAttempts times, sleeping p.Backoff between
// attempts. The final failure is returned unwrapped. Context cancellation
// during a backoff sleep aborts immediately with the last error observed.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, lastErr
		case <-time.After(p.Backoff.Delay(attempt)):
		}
	}
	return zero, lastErr
}
