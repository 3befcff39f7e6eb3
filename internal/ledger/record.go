// Package ledger stores the append-only trade ledger: one record per
// fill, secondary indexes for every lookup dimension, and the optimistic
// compare-and-swap path that is the only way a stored record may change.
package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Side is which half of a binary market the trade bought.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Market categories accepted by the ledger.
const (
	CategoryBinary  = "binary"
	CategoryRange   = "range"
	CategoryWeather = "weather"
	CategoryMacro   = "macro"
	CategoryCustom  = "custom"
)

var validCategories = map[string]struct{}{
	CategoryBinary:  {},
	CategoryRange:   {},
	CategoryWeather: {},
	CategoryMacro:   {},
	CategoryCustom:  {},
}

// allowedShortReasons are exempt from the minimum reason length.
var allowedShortReasons = map[string]struct{}{
	"storm":     {},
	"rebalance": {},
}

const minReasonLength = 10

var stationPattern = regexp.MustCompile(`^[A-Z]{2,4}$`)

// TradeRecord is one entry in the ledger. Core fields are immutable once
// stored; only the live-quote mirror and settlement fields may change, and
// only through the optimistic updater.
type TradeRecord struct {
	OrderID        string    `json:"order_id"`
	MarketTicker   string    `json:"market_ticker"`
	TradeTimestamp time.Time `json:"trade_timestamp"`
	Side           Side      `json:"trade_side"`
	Quantity       int       `json:"quantity"`
	PriceCents     int       `json:"price_cents"`
	FeeCents       int       `json:"fee_cents"`
	CostCents      int       `json:"cost_cents"`
	MarketCategory string    `json:"market_category"`
	WeatherStation string    `json:"weather_station,omitempty"`
	TradeRule      string    `json:"trade_rule"`
	TradeReason    string    `json:"trade_reason"`

	// Live-quote mirror, refreshed by UpdateTradePrices.
	LastYesBid      *float64   `json:"last_yes_bid,omitempty"`
	LastYesAsk      *float64   `json:"last_yes_ask,omitempty"`
	LastPriceUpdate *time.Time `json:"last_price_update,omitempty"`

	// Settlement, set once by MarkSettled.
	SettlementPriceCents *int       `json:"settlement_price_cents,omitempty"`
	SettlementTime       *time.Time `json:"settlement_time,omitempty"`
}

// IsSettled reports whether the record has a settlement price, after
// which realized P&L is derivable.
func (t *TradeRecord) IsSettled() bool {
	return t.SettlementPriceCents != nil
}

// TradeDate is the UTC calendar date the fill executed; it keys the
// primary record.
func (t *TradeRecord) TradeDate() time.Time {
	return t.TradeTimestamp.UTC().Truncate(24 * time.Hour)
}

// CloseDate is the settlement date when settled, else the trade date.
func (t *TradeRecord) CloseDate() time.Time {
	if t.SettlementTime != nil {
		return t.SettlementTime.UTC().Truncate(24 * time.Hour)
	}
	return t.TradeDate()
}

// Validate checks every ledger invariant and normalizes the category to
// lowercase and the station to uppercase. It runs at construction and
// again on every decode: the codec is the boundary against corrupted
// storage and must not trust the byte stream.
func (t *TradeRecord) Validate() error {
	if strings.TrimSpace(t.OrderID) == "" {
		return validationErr("order_id must be set")
	}
	if strings.TrimSpace(t.MarketTicker) == "" {
		return validationErr("market_ticker must be set")
	}
	if t.TradeTimestamp.IsZero() {
		return validationErr("trade_timestamp must be set")
	}
	if t.Side != SideYes && t.Side != SideNo {
		return validationErr(fmt.Sprintf("trade_side must be %q or %q, got %q", SideYes, SideNo, t.Side))
	}
	if t.Quantity <= 0 {
		return validationErr(fmt.Sprintf("quantity must be positive, got %d", t.Quantity))
	}
	if t.PriceCents < 1 || t.PriceCents > 99 {
		return validationErr(fmt.Sprintf("price_cents must be in [1,99], got %d", t.PriceCents))
	}
	if t.FeeCents < 0 {
		return validationErr(fmt.Sprintf("fee_cents must be non-negative, got %d", t.FeeCents))
	}
	if want := t.PriceCents*t.Quantity + t.FeeCents; t.CostCents != want {
		return validationErr(fmt.Sprintf("cost mismatch: expected %d (price %d * quantity %d + fee %d), got %d",
			want, t.PriceCents, t.Quantity, t.FeeCents, t.CostCents))
	}

	category, err := NormalizeCategory(t.MarketCategory)
	if err != nil {
		return err
	}
	t.MarketCategory = category

	station, err := NormalizeStation(t.WeatherStation, t.MarketCategory)
	if err != nil {
		return err
	}
	t.WeatherStation = station

	if strings.TrimSpace(t.TradeRule) == "" {
		return validationErr("trade_rule must be set")
	}
	if !IsTradeReasonValid(t.TradeReason) {
		return validationErr(fmt.Sprintf("trade_reason %q is too short; use a descriptive reason of at least %d characters", t.TradeReason, minReasonLength))
	}

	if t.SettlementPriceCents != nil {
		if p := *t.SettlementPriceCents; p < 0 || p > 100 {
			return validationErr(fmt.Sprintf("settlement_price_cents must be in [0,100], got %d", p))
		}
	}
	return nil
}

// NormalizeCategory lowercases and checks the market category.
func NormalizeCategory(category string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" {
		return "", validationErr("market_category must be specified")
	}
	if _, ok := validCategories[normalized]; !ok {
		return "", validationErr(fmt.Sprintf("unsupported market category %q", category))
	}
	return normalized, nil
}

// NormalizeStation uppercases and checks the weather station code. The
// station is required exactly when the category is weather; other
// categories carry it through untouched.
func NormalizeStation(station, category string) (string, error) {
	if category != CategoryWeather {
		return station, nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(station))
	if normalized == "" {
		return "", validationErr("weather_station must be specified for weather trades")
	}
	if !stationPattern.MatchString(normalized) {
		return "", validationErr(fmt.Sprintf("weather_station %q must be a 2-4 letter code", station))
	}
	return normalized, nil
}

// IsTradeReasonValid accepts reasons of at least ten characters or one of
// the small allow-list of short operational reasons.
func IsTradeReasonValid(reason string) bool {
	trimmed := strings.TrimSpace(reason)
	if len(trimmed) >= minReasonLength {
		return true
	}
	_, ok := allowedShortReasons[strings.ToLower(trimmed)]
	return ok
}

func validationErr(reason string) error {
	return &storeerr.ValidationError{Op: "trade_record", Reason: reason}
}
