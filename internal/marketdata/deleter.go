package marketdata

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/internal/metrics"
	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Deleter prunes degenerate snapshots.
type Deleter interface {
	DeleteIfInvalid(ctx context.Context, key string, data map[string]any) (bool, error)
}

// DeletionValidator removes a snapshot whose critical fields are missing,
// nil, or zero, so consumers never trade on zeroed data.
type DeletionValidator struct {
	client redis.UniversalClient
	log    *zap.Logger
}

var _ Deleter = (*DeletionValidator)(nil)

func NewDeletionValidator(client redis.UniversalClient, log *zap.Logger) *DeletionValidator {
	return &DeletionValidator{client: client, log: log}
}

// DeleteIfInvalid inspects the critical fields of data and atomically
// deletes key when any is degenerate. Returns true only when the store
// actually removed the key, so a repeat call on an already-deleted key
// returns false.
func (d *DeletionValidator) DeleteIfInvalid(ctx context.Context, key string, data map[string]any) (bool, error) {
	reason, invalid := Degenerate(data)
	if !invalid {
		return false, nil
	}

	removed, err := d.client.Del(ctx, key).Result()
	if err != nil {
		return false, &storeerr.TransientError{Op: "delete_if_invalid", Key: key, Err: err}
	}
	if removed == 0 {
		return false, nil
	}

	metrics.SnapshotsPruned.Inc()
	d.log.Info("pruned degenerate snapshot", zap.String("key", key), zap.String("reason", reason))
	return true, nil
}

// Degenerate returns the name of the first critical field that is
// missing, nil, or numerically zero, and whether one was found.
func Degenerate(data map[string]any) (string, bool) {
	for _, field := range CriticalFields {
		value, ok := data[field]
		if !ok || value == nil {
			return field, true
		}
		if n, numeric := numericField(data, field); numeric && n == 0 {
			return field, true
		}
		if s, isString := value.(string); isString && s == "" {
			return field, true
		}
	}
	return "", false
}
