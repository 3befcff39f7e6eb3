package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newShowCmd prints one ledger entry by order id.
func newShowCmd(a *app) *cobra.Command {
	var orderID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a trade record by order id",
		RunE: func(cmd *cobra.Command, args []string) error {
			trade, err := a.repo.GetByOrderID(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			if trade == nil {
				return fmt.Errorf("order %s is not in the ledger", orderID)
			}

			out, err := json.MarshalIndent(trade, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&orderID, "order-id", "", "Order id to look up")
	_ = cmd.MarkFlagRequired("order-id")
	return cmd
}

// newSettleCmd marks a trade settled at the given price.
func newSettleCmd(a *app) *cobra.Command {
	var (
		orderID    string
		priceCents int
		settledAt  string
	)

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Mark a trade settled",
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now().UTC()
			if settledAt != "" {
				parsed, err := time.Parse(time.RFC3339, settledAt)
				if err != nil {
					return fmt.Errorf("invalid --settled-at %q: %w", settledAt, err)
				}
				when = parsed
			}

			if err := a.updater.MarkSettled(cmd.Context(), orderID, priceCents, when); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s settled at %d cents\n", orderID, priceCents)
			return nil
		},
	}

	cmd.Flags().StringVar(&orderID, "order-id", "", "Order id to settle")
	cmd.Flags().IntVar(&priceCents, "price", 0, "Settlement price in cents (0-100)")
	cmd.Flags().StringVar(&settledAt, "settled-at", "", "Settlement time, RFC3339 (default now)")
	_ = cmd.MarkFlagRequired("order-id")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

// newRefreshPricesCmd pushes a live quote onto today's trades for a market.
func newRefreshPricesCmd(a *app) *cobra.Command {
	var (
		ticker string
		yesBid float64
		yesAsk float64
	)

	cmd := &cobra.Command{
		Use:   "refresh-prices",
		Short: "Refresh the live-quote mirror on today's trades for a market",
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := a.updater.UpdateTradePrices(cmd.Context(), ticker, yesBid, yesAsk)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d trades for %s\n", updated, ticker)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "Market ticker")
	cmd.Flags().Float64Var(&yesBid, "bid", 0, "Current yes bid in cents")
	cmd.Flags().Float64Var(&yesAsk, "ask", 0, "Current yes ask in cents")
	_ = cmd.MarkFlagRequired("ticker")
	return cmd
}
