package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// OrderMetadata is captured when an order is placed, before the fill is
// confirmed, and consumed once to enrich the TradeRecord at fill time.
// Records are written without expiry; whether they are an audit trail or
// should eventually be reaped is deliberately left open.
type OrderMetadata struct {
	TradeRule      string    `json:"trade_rule"`
	TradeReason    string    `json:"trade_reason"`
	MarketCategory string    `json:"market_category"`
	WeatherStation string    `json:"weather_station,omitempty"`
	StoredAt       time.Time `json:"stored_at"`
}

// MetadataOption adjusts optional metadata fields.
type MetadataOption func(*OrderMetadata)

// WithCategory overrides the default weather category.
func WithCategory(category string) MetadataOption {
	return func(m *OrderMetadata) { m.MarketCategory = category }
}

// WithStation records the weather station the order targets.
func WithStation(station string) MetadataOption {
	return func(m *OrderMetadata) { m.WeatherStation = station }
}

// StoreOrderMetadata validates and persists pre-fill metadata for an
// order. Validation happens before any write: nothing lands in the store
// for a rejected rule or reason.
func (r *RedisRepository) StoreOrderMetadata(ctx context.Context, orderID, rule, reason string, opts ...MetadataOption) error {
	if strings.TrimSpace(orderID) == "" {
		return &storeerr.ValidationError{Op: "store_order_metadata", Reason: "empty order_id"}
	}
	if strings.TrimSpace(rule) == "" {
		return &storeerr.ValidationError{Op: "store_order_metadata", Key: orderID, Reason: "empty trade_rule"}
	}
	if strings.TrimSpace(reason) == "" {
		return &storeerr.ValidationError{Op: "store_order_metadata", Key: orderID, Reason: "empty trade_reason"}
	}
	if !IsTradeReasonValid(reason) {
		return &storeerr.ValidationError{
			Op:     "store_order_metadata",
			Key:    orderID,
			Reason: fmt.Sprintf("trade_reason %q is too short", reason),
		}
	}

	meta := OrderMetadata{
		TradeRule:      rule,
		TradeReason:    reason,
		MarketCategory: CategoryWeather,
		StoredAt:       time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&meta)
	}

	category, err := NormalizeCategory(meta.MarketCategory)
	if err != nil {
		return err
	}
	meta.MarketCategory = category

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for order %s: %w", orderID, err)
	}

	key := r.keys.OrderMetadata(orderID)
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return &storeerr.TransientError{Op: "store_order_metadata", Key: key, Err: err}
	}

	r.log.Debug("order metadata stored", zap.String("order_id", orderID), zap.String("rule", rule))
	return nil
}

// GetOrderMetadata fetches metadata for an order; nil when absent.
func (r *RedisRepository) GetOrderMetadata(ctx context.Context, orderID string) (*OrderMetadata, error) {
	key := r.keys.OrderMetadata(orderID)
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &storeerr.TransientError{Op: "get_order_metadata", Key: key, Err: err}
	}

	var meta OrderMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, &storeerr.ValidationError{
			Op:     "get_order_metadata",
			Key:    key,
			Reason: "metadata payload is not valid JSON",
			Err:    err,
		}
	}
	return &meta, nil
}
