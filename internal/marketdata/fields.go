package marketdata

import "fmt"

// Snapshot hash field names.
const (
	FieldBestBid      = "best_bid"
	FieldBestAsk      = "best_ask"
	FieldBestBidSize  = "best_bid_size"
	FieldBestAskSize  = "best_ask_size"
	FieldMarketTicker = "market_ticker"
	FieldLastUpdate   = "last_update"
)

// DefaultRequiredFields is what a reader needs before it may act on a
// snapshot: the full top of book.
var DefaultRequiredFields = []string{
	FieldBestBid,
	FieldBestAsk,
	FieldBestBidSize,
	FieldBestAskSize,
}

// CriticalFields are inspected by the deletion validator; a snapshot with
// any of them missing or zero is degenerate and unsafe to trade on.
var CriticalFields = []string{
	FieldBestBid,
	FieldBestAsk,
	FieldBestBidSize,
	FieldBestAskSize,
}

// passthroughFields are stored and returned as strings, never coerced.
var passthroughFields = map[string]struct{}{
	FieldMarketTicker: {},
	FieldLastUpdate:   {},
}

// SnapshotKey builds the store key for one tradable instrument.
func SnapshotKey(prefix, category, ticker string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, category, ticker)
}
