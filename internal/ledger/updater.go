package ledger

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

// Updater is the only path by which an already-stored trade record may
// change. Exactly two mutations exist: refreshing the live-quote mirror
// and marking settlement.
type Updater interface {
	MarkSettled(ctx context.Context, orderID string, settlementPriceCents int, settledAt time.Time) error
	UpdateTradePrices(ctx context.Context, marketTicker string, yesBid, yesAsk float64) (int, error)
}

// UpdaterConfig bounds the compare-and-swap retry loop.
type UpdaterConfig struct {
	MaxAttempts int            `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase time.Duration  `yaml:"backoff_base" json:"backoff_base"`
	BackoffMax  time.Duration  `yaml:"backoff_max" json:"backoff_max"`
	Location    *time.Location `yaml:"-" json:"-"`
}

// DefaultUpdaterConfig matches the store's contention profile: a handful
// of writers racing on freshly-filled orders.
func DefaultUpdaterConfig() UpdaterConfig {
	return UpdaterConfig{
		MaxAttempts: 5,
		BackoffBase: 10 * time.Millisecond,
		BackoffMax:  500 * time.Millisecond,
		Location:    time.UTC,
	}
}

// OptimisticUpdater mutates trade records under WATCH: versioned read,
// in-memory mutation, conditional commit, exponential backoff on
// conflict. Successful commits against the same record linearize.
type OptimisticUpdater struct {
	client redis.UniversalClient
	keys   KeyBuilder
	policy retry.Policy
	loc    *time.Location
	log    *zap.Logger
	now    func() time.Time
}

var _ Updater = (*OptimisticUpdater)(nil)

func NewOptimisticUpdater(client redis.UniversalClient, keys KeyBuilder, cfg UpdaterConfig, log *zap.Logger) (*OptimisticUpdater, error) {
	policy := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     retry.Exponential{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
		Retryable: func(err error) bool {
			return errors.Is(err, redis.TxFailedErr)
		},
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &OptimisticUpdater{
		client: client,
		keys:   keys,
		policy: policy,
		loc:    loc,
		log:    log,
		now:    time.Now,
	}, nil
}

// MarkSettled records the settlement price and time on the trade the
// order id resolves to.
func (u *OptimisticUpdater) MarkSettled(ctx context.Context, orderID string, settlementPriceCents int, settledAt time.Time) error {
	indexKey := u.keys.OrderIndex(orderID)
	tradeKey, err := u.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return &storeerr.IntegrityError{
			Op:     "mark_settled",
			Key:    indexKey,
			Reason: "order is not indexed in the ledger",
		}
	}
	if err != nil {
		return &storeerr.TransientError{Op: "mark_settled", Key: indexKey, Err: err}
	}

	settled := settledAt.UTC()
	return u.mutate(ctx, "mark_settled", tradeKey, []string{tradeKey, indexKey}, func(trade *TradeRecord) error {
		trade.SettlementPriceCents = &settlementPriceCents
		trade.SettlementTime = &settled
		return nil
	})
}

// today resolves the current calendar date in the configured location and
// pins it to the matching UTC date bucket. The ledger keys dates in UTC;
// the location only decides which bucket counts as "today" (a refresh at
// 20:00 New York still targets that evening's bucket, not tomorrow's).
func (u *OptimisticUpdater) today() time.Time {
	now := u.now().In(u.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// UpdateTradePrices refreshes the live-quote mirror on every trade filled
// today for the given market. Returns how many records were patched.
func (u *OptimisticUpdater) UpdateTradePrices(ctx context.Context, marketTicker string, yesBid, yesAsk float64) (int, error) {
	today := u.today()
	orderIDs, err := u.client.SMembers(ctx, u.keys.DateIndex(today)).Result()
	if err != nil {
		return 0, &storeerr.TransientError{Op: "update_trade_prices", Key: u.keys.DateIndex(today), Err: err}
	}

	updatedAt := u.now().UTC()
	updated := 0
	for _, orderID := range orderIDs {
		tradeKey := u.keys.Trade(today, orderID)
		matched := false
		err := u.mutate(ctx, "update_trade_prices", tradeKey, []string{tradeKey}, func(trade *TradeRecord) error {
			if trade.MarketTicker != marketTicker {
				return errSkipMutation
			}
			matched = true
			bid, ask := yesBid, yesAsk
			trade.LastYesBid = &bid
			trade.LastYesAsk = &ask
			trade.LastPriceUpdate = &updatedAt
			return nil
		})
		if err != nil {
			return updated, err
		}
		if matched {
			updated++
		}
	}

	u.log.Debug("trade prices refreshed",
		zap.String("ticker", marketTicker),
		zap.Int("updated", updated))
	return updated, nil
}

// errSkipMutation aborts a mutation without error when the record is not
// a target of the update.
var errSkipMutation = errors.New("skip mutation")

// mutate runs one read-modify-conditional-write cycle under WATCH,
// retrying version conflicts with exponential backoff. watchKeys must
// include tradeKey; settlement also watches the indirection key so a
// re-pointed index aborts the commit.
func (u *OptimisticUpdater) mutate(ctx context.Context, op, tradeKey string, watchKeys []string, apply func(*TradeRecord) error) error {
	attempts := 0
	_, err := retry.Do(ctx, u.policy, func(ctx context.Context) (struct{}, error) {
		attempts++
		err := u.client.Watch(ctx, func(tx *redis.Tx) error {
			payload, err := tx.Get(ctx, tradeKey).Bytes()
			if errors.Is(err, redis.Nil) {
				return &storeerr.IntegrityError{
					Op:     op,
					Key:    tradeKey,
					Reason: "trade payload missing for indexed order",
				}
			}
			if err != nil {
				return &storeerr.TransientError{Op: op, Key: tradeKey, Err: err}
			}

			trade, err := DecodeTrade(payload)
			if err != nil {
				return err
			}
			if err := apply(trade); err != nil {
				return err
			}

			updated, err := EncodeTrade(trade)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, tradeKey, updated, 0)
				return nil
			})
			return err
		}, watchKeys...)

		if errors.Is(err, redis.TxFailedErr) {
			metrics.CASConflicts.Inc()
			u.log.Debug("optimistic update conflict",
				zap.String("op", op),
				zap.String("key", tradeKey),
				zap.Int("attempt", attempts))
		}
		return struct{}{}, err
	})

	if errors.Is(err, errSkipMutation) {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return &storeerr.ConcurrencyExhaustedError{
			Op:       op,
			Key:      tradeKey,
			Attempts: attempts,
			Err:      err,
		}
	}
	return err
}
