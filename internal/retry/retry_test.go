package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Policy{MaxAttempts: 3, Backoff: Fixed{Interval: time.Millisecond}},
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Policy{MaxAttempts: 5, Backoff: Fixed{Interval: time.Millisecond}},
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("not yet")
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsFinalErrorVerbatim(t *testing.T) {
	sentinel := errors.New("torn read")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, Backoff: Fixed{Interval: time.Millisecond}},
		func(ctx context.Context) (struct{}, error) {
			calls++
			return struct{}{}, sentinel
		})

	assert.Same(t, sentinel, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("corruption")
	calls := 0
	_, err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Backoff:     Fixed{Interval: time.Millisecond},
		Retryable:   func(err error) bool { return false },
	}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, fatal
	})

	assert.Same(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestDoAbortsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 10, Backoff: Fixed{Interval: time.Hour}},
		func(ctx context.Context) (struct{}, error) {
			calls++
			cancel()
			return struct{}{}, errors.New("transient")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRejectsInvalidPolicy(t *testing.T) {
	var cfgErr *storeerr.ConfigurationError

	_, err := Do(context.Background(), Policy{MaxAttempts: 0, Backoff: Fixed{}},
		func(ctx context.Context) (struct{}, error) { return struct{}{}, nil })
	require.ErrorAs(t, err, &cfgErr)

	_, err = Do(context.Background(), Policy{MaxAttempts: 1},
		func(ctx context.Context) (struct{}, error) { return struct{}{}, nil })
	require.ErrorAs(t, err, &cfgErr)
}

func TestExponentialBackoffDoubles(t *testing.T) {
	b := Exponential{Base: 10 * time.Millisecond, Max: 500 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, b.Delay(0))
	assert.Equal(t, 20*time.Millisecond, b.Delay(1))
	assert.Equal(t, 40*time.Millisecond, b.Delay(2))
	assert.Equal(t, 80*time.Millisecond, b.Delay(3))
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	b := Exponential{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}

	assert.Equal(t, 50*time.Millisecond, b.Delay(5))
	assert.Equal(t, 50*time.Millisecond, b.Delay(40))
}

func TestExponentialBackoffOverflowWithoutMaxKeepsBase(t *testing.T) {
	b := Exponential{Base: 10 * time.Millisecond}

	// Shift overflow on an uncapped backoff must still sleep, never spin.
	assert.Equal(t, 10*time.Millisecond, b.Delay(62))
	assert.Equal(t, 10*time.Millisecond, b.Delay(100))
}

func TestFixedBackoffIsConstant(t *testing.T) {
	b := Fixed{Interval: 25 * time.Millisecond}

	assert.Equal(t, 25*time.Millisecond, b.Delay(0))
	assert.Equal(t, 25*time.Millisecond, b.Delay(9))
}
