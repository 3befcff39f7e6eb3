package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/internal/metrics"
	"github.com/mahrens917/marketstore/internal/retry"
	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Reader fetches and validates market snapshots.
type Reader interface {
	Read(ctx context.Context, key string, required []string) (map[string]any, error)
}

// SafeReader runs fetch -> required-fields -> coerce -> spread as one unit
// under the retrying executor. A reader can race a writer mid-batch or
// observe store-side corruption; retrying absorbs the former and surfaces
// the latter.
type SafeReader struct {
	client redis.UniversalClient
	log    *zap.Logger
	policy retry.Policy
}

var _ Reader = (*SafeReader)(nil)

// NewSafeReader builds a reader retrying up to maxAttempts with a fixed
// delay between attempts.
func NewSafeReader(client redis.UniversalClient, maxAttempts int, delay time.Duration, log *zap.Logger) (*SafeReader, error) {
	policy := retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff:     retry.Fixed{Interval: delay},
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &SafeReader{client: client, log: log, policy: policy}, nil
}

// Read returns the typed snapshot for key. required defaults to the full
// top of book when empty. On the final attempt the last validation
// failure propagates to the caller verbatim.
func (r *SafeReader) Read(ctx context.Context, key string, required []string) (map[string]any, error) {
	if len(required) == 0 {
		required = DefaultRequiredFields
	}

	attempt := 0
	result, err := retry.Do(ctx, r.policy, func(ctx context.Context) (map[string]any, error) {
		if attempt > 0 {
			metrics.SafeReadRetries.Inc()
		}
		attempt++
		return r.readOnce(ctx, key, required)
	})
	if err != nil {
		r.log.Error("safe read exhausted",
			zap.String("key", key),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return nil, err
	}

	r.log.Debug("safe read succeeded", zap.String("key", key), zap.Int("attempt", attempt))
	return result, nil
}

func (r *SafeReader) readOnce(ctx context.Context, key string, required []string) (map[string]any, error) {
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, &storeerr.TransientError{Op: "safe_read", Key: key, Err: err}
	}

	if err := ensureRequiredFields(key, raw, required); err != nil {
		return nil, err
	}
	converted, err := coercePayload(key, raw)
	if err != nil {
		return nil, err
	}
	if err := validateSpread(key, converted); err != nil {
		return nil, err
	}
	return converted, nil
}
