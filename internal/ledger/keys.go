package ledger

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// KeyBuilder produces every ledger key under one configurable prefix.
type KeyBuilder struct {
	Prefix string
}

// NewKeyBuilder defaults the prefix to "trades".
func NewKeyBuilder(prefix string) KeyBuilder {
	if prefix == "" {
		prefix = "trades"
	}
	return KeyBuilder{Prefix: prefix}
}

// Trade is the primary payload key, keyed by trade date and order id.
func (k KeyBuilder) Trade(day time.Time, orderID string) string {
	return fmt.Sprintf("%s:%s:%s", k.Prefix, day.UTC().Format(dateLayout), orderID)
}

// DateIndex holds the order ids filled on one calendar date.
func (k KeyBuilder) DateIndex(day time.Time) string {
	return fmt.Sprintf("%s:by_date:%s", k.Prefix, day.UTC().Format(dateLayout))
}

// StationIndex holds the order ids for one weather station.
func (k KeyBuilder) StationIndex(station string) string {
	return fmt.Sprintf("%s:by_station:%s", k.Prefix, station)
}

// RuleIndex holds the order ids placed under one trade rule.
func (k KeyBuilder) RuleIndex(rule string) string {
	return fmt.Sprintf("%s:by_rule:%s", k.Prefix, rule)
}

// CategoryIndex holds the order ids for one market category.
func (k KeyBuilder) CategoryIndex(category string) string {
	return fmt.Sprintf("%s:by_category:%s", k.Prefix, category)
}

// OrderIndex maps an order id to its primary payload key.
func (k KeyBuilder) OrderIndex(orderID string) string {
	return fmt.Sprintf("%s:order_index:%s", k.Prefix, orderID)
}

// OrderMetadata holds pre-fill metadata captured before the fill confirms.
func (k KeyBuilder) OrderMetadata(orderID string) string {
	return fmt.Sprintf("%s:order_metadata:%s", k.Prefix, orderID)
}
