package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/internal/metrics"
	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Writer performs all-fields-or-nothing market snapshot writes.
type Writer interface {
	Write(ctx context.Context, key string, fields map[string]any) error
}

// AtomicWriter submits every field of a snapshot as one transactional
// batch. A reader never observes a subset of one call's fields.
type AtomicWriter struct {
	client redis.UniversalClient
	log    *zap.Logger

	// ttl, when positive, expires snapshots that stop being refreshed.
	// Zero keeps them forever (the prune sweep handles degenerate ones).
	ttl time.Duration

	now func() time.Time
}

var _ Writer = (*AtomicWriter)(nil)

// NewAtomicWriter builds a writer. ttl of zero disables snapshot expiry.
func NewAtomicWriter(client redis.UniversalClient, ttl time.Duration, log *zap.Logger) *AtomicWriter {
	return &AtomicWriter{
		client: client,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Write stringifies fields, stamps last_update, and commits the whole map
// in a single MULTI/EXEC batch.
func (w *AtomicWriter) Write(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return &storeerr.ValidationError{Op: "atomic_write", Key: key, Reason: "empty field map"}
	}

	wire := stringifyFields(fields)
	wire[FieldLastUpdate] = w.now().UTC().Format(time.RFC3339Nano)

	cmds, execErr := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, wire)
		if w.ttl > 0 {
			pipe.Expire(ctx, key, w.ttl)
		}
		return nil
	})

	// TxPipelined reports the first per-command failure as its own error;
	// inspect the command results first so a server-side rejection is a
	// write failure, not a retryable transport fault.
	for _, cmd := range cmds {
		if cmdErr := cmd.Err(); cmdErr != nil {
			var replyErr redis.Error
			if errors.As(cmdErr, &replyErr) {
				metrics.WriteFailures.Inc()
				return &storeerr.WriteFailedError{Key: key, Err: cmdErr}
			}
		}
	}
	if execErr != nil {
		metrics.WriteFailures.Inc()
		return &storeerr.TransientError{Op: "atomic_write", Key: key, Err: execErr}
	}
	if len(cmds) == 0 {
		metrics.WriteFailures.Inc()
		return &storeerr.WriteFailedError{Key: key}
	}

	w.log.Debug("snapshot written", zap.String("key", key), zap.Int("fields", len(wire)))
	return nil
}
