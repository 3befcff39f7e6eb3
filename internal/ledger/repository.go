package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/internal/metrics"
	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Repository is the ledger's read/write surface. Consumers above this
// layer (reporting, P&L aggregation) only ever see decoded records or
// plain identifier sets.
type Repository interface {
	Store(ctx context.Context, trade *TradeRecord) error
	Get(ctx context.Context, day time.Time, orderID string) (*TradeRecord, error)
	GetByOrderID(ctx context.Context, orderID string) (*TradeRecord, error)
	LoadAllForDate(ctx context.Context, day time.Time) ([]string, error)
	LoadIndex(ctx context.Context, indexKey string) ([]string, error)
}

// RedisRepository persists trades and their secondary indexes in Redis.
type RedisRepository struct {
	client redis.UniversalClient
	keys   KeyBuilder
	log    *zap.Logger
}

var _ Repository = (*RedisRepository)(nil)

func NewRedisRepository(client redis.UniversalClient, keys KeyBuilder, log *zap.Logger) *RedisRepository {
	return &RedisRepository{client: client, keys: keys, log: log}
}

// Keys exposes the repository's key builder so collaborators (the
// optimistic updater, the CLI) address the same layout.
func (r *RedisRepository) Keys() KeyBuilder { return r.keys }

// Store writes the primary record plus every index membership as one
// pipelined batch. The batch is not a cross-structure transaction; the
// guarantee is the documented weaker one: no individual operation may
// report failure, and a partially-applied batch is surfaced as an
// integrity violation, never silently accepted.
func (r *RedisRepository) Store(ctx context.Context, trade *TradeRecord) error {
	payload, err := EncodeTrade(trade)
	if err != nil {
		return err
	}

	tradeKey := r.keys.Trade(trade.TradeTimestamp, trade.OrderID)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, tradeKey, payload, 0)
	pipe.SAdd(ctx, r.keys.DateIndex(trade.TradeTimestamp), trade.OrderID)
	pipe.SAdd(ctx, r.keys.CategoryIndex(trade.MarketCategory), trade.OrderID)
	pipe.SAdd(ctx, r.keys.RuleIndex(trade.TradeRule), trade.OrderID)
	if trade.WeatherStation != "" {
		pipe.SAdd(ctx, r.keys.StationIndex(trade.WeatherStation), trade.OrderID)
	}
	pipe.Set(ctx, r.keys.OrderIndex(trade.OrderID), tradeKey, 0)

	cmds, execErr := pipe.Exec(ctx)

	// Exec surfaces the first per-command failure as its own error, so the
	// command results must be inspected before classifying. A server reply
	// error on any command means the batch partially applied; only a batch
	// that never produced server replies is a transport failure.
	var failed []int
	serverErr := false
	for i, cmd := range cmds {
		if cmdErr := cmd.Err(); cmdErr != nil {
			failed = append(failed, i)
			var replyErr redis.Error
			if errors.As(cmdErr, &replyErr) {
				serverErr = true
			}
		}
	}
	if serverErr {
		metrics.IntegrityFaults.Inc()
		return &storeerr.IntegrityError{
			Op:        "store_trade",
			Key:       tradeKey,
			Reason:    "pipeline batch partially failed",
			FailedOps: failed,
		}
	}
	if execErr != nil {
		return &storeerr.TransientError{Op: "store_trade", Key: tradeKey, Err: execErr}
	}

	r.log.Info("trade stored",
		zap.String("order_id", trade.OrderID),
		zap.String("ticker", trade.MarketTicker),
		zap.String("category", trade.MarketCategory))
	return nil
}

// Get fetches a trade by its primary key. Returns nil only when the
// record is truly absent.
func (r *RedisRepository) Get(ctx context.Context, day time.Time, orderID string) (*TradeRecord, error) {
	return r.fetch(ctx, r.keys.Trade(day, orderID))
}

// GetByOrderID resolves the indirection index, then fetches. An index
// entry pointing at a missing payload is corruption, never "not found".
func (r *RedisRepository) GetByOrderID(ctx context.Context, orderID string) (*TradeRecord, error) {
	indexKey := r.keys.OrderIndex(orderID)
	tradeKey, err := r.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &storeerr.TransientError{Op: "get_trade_by_order_id", Key: indexKey, Err: err}
	}

	trade, err := r.fetch(ctx, tradeKey)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		metrics.IntegrityFaults.Inc()
		return nil, &storeerr.IntegrityError{
			Op:     "get_trade_by_order_id",
			Key:    tradeKey,
			Reason: "order index references a missing trade payload",
		}
	}
	return trade, nil
}

// LoadAllForDate returns the order ids filled on the given date. The
// underlying container is a set, so members are already de-duplicated and
// unordered.
func (r *RedisRepository) LoadAllForDate(ctx context.Context, day time.Time) ([]string, error) {
	return r.LoadIndex(ctx, r.keys.DateIndex(day))
}

// LoadIndex returns the member ids of any ledger index key.
func (r *RedisRepository) LoadIndex(ctx context.Context, indexKey string) ([]string, error) {
	members, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, &storeerr.TransientError{Op: "load_index", Key: indexKey, Err: err}
	}
	return members, nil
}

func (r *RedisRepository) fetch(ctx context.Context, tradeKey string) (*TradeRecord, error) {
	payload, err := r.client.Get(ctx, tradeKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &storeerr.TransientError{Op: "get_trade", Key: tradeKey, Err: err}
	}

	trade, err := DecodeTrade(payload)
	if err != nil {
		var verr *storeerr.ValidationError
		if errors.As(err, &verr) && verr.Key == "" {
			verr.Key = tradeKey
		}
		return nil, err
	}
	return trade, nil
}
