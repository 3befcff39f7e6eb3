package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// tradeWire is the stored JSON shape. Timestamps travel as strings so that
// records written by older producers without zone qualifiers still decode;
// naive timestamps are interpreted as UTC.
type tradeWire struct {
	OrderID              string   `json:"order_id"`
	MarketTicker         string   `json:"market_ticker"`
	TradeTimestamp       string   `json:"trade_timestamp"`
	Side                 Side     `json:"trade_side"`
	Quantity             int      `json:"quantity"`
	PriceCents           int      `json:"price_cents"`
	FeeCents             int      `json:"fee_cents"`
	CostCents            int      `json:"cost_cents"`
	MarketCategory       string   `json:"market_category"`
	WeatherStation       string   `json:"weather_station,omitempty"`
	TradeRule            string   `json:"trade_rule"`
	TradeReason          string   `json:"trade_reason"`
	LastYesBid           *float64 `json:"last_yes_bid,omitempty"`
	LastYesAsk           *float64 `json:"last_yes_ask,omitempty"`
	LastPriceUpdate      string   `json:"last_price_update,omitempty"`
	SettlementPriceCents *int     `json:"settlement_price_cents,omitempty"`
	SettlementTime       string   `json:"settlement_time,omitempty"`
}

// EncodeTrade validates and serializes a record. Optional fields that are
// unset are omitted rather than written as null placeholders.
func EncodeTrade(trade *TradeRecord) ([]byte, error) {
	if err := trade.Validate(); err != nil {
		return nil, err
	}

	wire := tradeWire{
		OrderID:              trade.OrderID,
		MarketTicker:         trade.MarketTicker,
		TradeTimestamp:       formatTimestamp(trade.TradeTimestamp),
		Side:                 trade.Side,
		Quantity:             trade.Quantity,
		PriceCents:           trade.PriceCents,
		FeeCents:             trade.FeeCents,
		CostCents:            trade.CostCents,
		MarketCategory:       trade.MarketCategory,
		WeatherStation:       trade.WeatherStation,
		TradeRule:            trade.TradeRule,
		TradeReason:          trade.TradeReason,
		LastYesBid:           trade.LastYesBid,
		LastYesAsk:           trade.LastYesAsk,
		SettlementPriceCents: trade.SettlementPriceCents,
	}
	if trade.LastPriceUpdate != nil {
		wire.LastPriceUpdate = formatTimestamp(*trade.LastPriceUpdate)
	}
	if trade.SettlementTime != nil {
		wire.SettlementTime = formatTimestamp(*trade.SettlementTime)
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trade %s: %w", trade.OrderID, err)
	}
	return payload, nil
}

// DecodeTrade deserializes and fully re-validates a stored record.
func DecodeTrade(payload []byte) (*TradeRecord, error) {
	var wire tradeWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, &storeerr.ValidationError{
			Op:     "trade_decode",
			Reason: "payload is not valid JSON",
			Err:    err,
		}
	}

	tradeTimestamp, err := parseTimestamp(wire.TradeTimestamp, "trade_timestamp")
	if err != nil {
		return nil, err
	}

	trade := &TradeRecord{
		OrderID:              wire.OrderID,
		MarketTicker:         wire.MarketTicker,
		TradeTimestamp:       tradeTimestamp,
		Side:                 wire.Side,
		Quantity:             wire.Quantity,
		PriceCents:           wire.PriceCents,
		FeeCents:             wire.FeeCents,
		CostCents:            wire.CostCents,
		MarketCategory:       wire.MarketCategory,
		WeatherStation:       wire.WeatherStation,
		TradeRule:            wire.TradeRule,
		TradeReason:          wire.TradeReason,
		LastYesBid:           wire.LastYesBid,
		LastYesAsk:           wire.LastYesAsk,
		SettlementPriceCents: wire.SettlementPriceCents,
	}
	if wire.LastPriceUpdate != "" {
		ts, err := parseTimestamp(wire.LastPriceUpdate, "last_price_update")
		if err != nil {
			return nil, err
		}
		trade.LastPriceUpdate = &ts
	}
	if wire.SettlementTime != "" {
		ts, err := parseTimestamp(wire.SettlementTime, "settlement_time")
		if err != nil {
			return nil, err
		}
		trade.SettlementTime = &ts
	}

	if err := trade.Validate(); err != nil {
		return nil, err
	}
	return trade, nil
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp accepts RFC3339 and zone-naive ISO8601; naive values are
// treated as UTC.
func parseTimestamp(value, field string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, &storeerr.ValidationError{
		Op:     "trade_decode",
		Reason: fmt.Sprintf("field %q holds unparsable timestamp %q", field, value),
	}
}
