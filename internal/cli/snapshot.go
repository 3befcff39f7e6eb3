package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mahrens917/marketstore/internal/marketdata"
)

// newWriteSnapshotCmd writes one market snapshot from --field flags.
// Intended for backfills and manual repair; the trading pipeline writes
// through the library directly.
func newWriteSnapshotCmd(a *app) *cobra.Command {
	var (
		category string
		ticker   string
		pairs    []string
	)

	cmd := &cobra.Command{
		Use:   "write-snapshot",
		Short: "Write a market snapshot atomically",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := make(map[string]any, len(pairs)+1)
			for _, pair := range pairs {
				name, value, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid --field %q, want name=value", pair)
				}
				fields[name] = value
			}
			fields[marketdata.FieldMarketTicker] = ticker

			writer := marketdata.NewAtomicWriter(a.client, a.cfg.Market.SnapshotTTL, a.log)
			key := marketdata.SnapshotKey(a.cfg.Market.KeyPrefix, category, ticker)
			if err := writer.Write(cmd.Context(), key, fields); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d fields)\n", key, len(fields))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "weather", "Market category")
	cmd.Flags().StringVar(&ticker, "ticker", "", "Market ticker")
	cmd.Flags().StringArrayVar(&pairs, "field", nil, "Snapshot field as name=value, repeatable")
	_ = cmd.MarkFlagRequired("ticker")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

// newShowSnapshotCmd reads one snapshot through the validating reader, so
// what it prints is exactly what a consumer would be allowed to act on.
func newShowSnapshotCmd(a *app) *cobra.Command {
	var (
		category string
		ticker   string
		required []string
	)

	cmd := &cobra.Command{
		Use:   "show-snapshot",
		Short: "Read and validate a market snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := marketdata.NewSafeReader(a.client, a.cfg.Market.ReadRetries, a.cfg.Market.ReadDelay, a.log)
			if err != nil {
				return err
			}

			key := marketdata.SnapshotKey(a.cfg.Market.KeyPrefix, category, ticker)
			data, err := reader.Read(cmd.Context(), key, required)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "weather", "Market category")
	cmd.Flags().StringVar(&ticker, "ticker", "", "Market ticker")
	cmd.Flags().StringSliceVar(&required, "require", nil, "Required field names (default full top of book)")
	_ = cmd.MarkFlagRequired("ticker")
	return cmd
}
