package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// Per-record P&L derivations. Aggregation across records and report
// formatting belong to the reporting layer; these helpers only answer
// "what is this one trade worth". Contract payout arithmetic runs through
// decimal so cents never pass through binary floating point.

const contractPayoutCents = 100

// RealizedPnLCents returns the settled profit or loss in cents, or false
// when the record is not settled yet.
func (t *TradeRecord) RealizedPnLCents() (int, bool) {
	if t.SettlementPriceCents == nil {
		return 0, false
	}

	settlement := decimal.NewFromInt(int64(*t.SettlementPriceCents))
	if t.Side == SideNo {
		settlement = decimal.NewFromInt(contractPayoutCents).Sub(settlement)
	}
	finalValue := settlement.Mul(decimal.NewFromInt(int64(t.Quantity)))
	pnl := finalValue.Sub(decimal.NewFromInt(int64(t.CostCents)))
	return int(pnl.IntPart()), true
}

// CurrentMarketPriceCents derives the live per-contract value from the
// quote mirror: the yes bid for a YES position, 100 minus the yes ask for
// a NO position. False when the needed quote is absent.
func (t *TradeRecord) CurrentMarketPriceCents() (int, bool) {
	switch t.Side {
	case SideYes:
		if t.LastYesBid == nil {
			return 0, false
		}
		return int(math.Round(*t.LastYesBid)), true
	case SideNo:
		if t.LastYesAsk == nil {
			return 0, false
		}
		return contractPayoutCents - int(math.Round(*t.LastYesAsk)), true
	default:
		return 0, false
	}
}

// CurrentPnLCents returns realized P&L when settled, otherwise
// mark-to-market P&L from the quote mirror. A record that is neither
// settled nor carrying a live quote cannot be valued and errors.
func (t *TradeRecord) CurrentPnLCents() (int, error) {
	if pnl, ok := t.RealizedPnLCents(); ok {
		return pnl, nil
	}

	price, ok := t.CurrentMarketPriceCents()
	if !ok {
		return 0, &storeerr.ValidationError{
			Op:     "trade_pnl",
			Key:    t.OrderID,
			Reason: fmt.Sprintf("live market price unavailable for %s", t.MarketTicker),
		}
	}

	value := decimal.NewFromInt(int64(price)).Mul(decimal.NewFromInt(int64(t.Quantity)))
	pnl := value.Sub(decimal.NewFromInt(int64(t.CostCents)))
	return int(pnl.IntPart()), nil
}
