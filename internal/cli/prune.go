package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/internal/marketdata"
)

// newPruneCmd sweeps the snapshot keyspace and deletes every snapshot
// whose critical fields are null or zero.
func newPruneCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete market snapshots with null or zero critical fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deleter := marketdata.NewDeletionValidator(a.client, a.log)
			pattern := a.cfg.Market.KeyPrefix + ":*"

			scanned, pruned := 0, 0
			iter := a.client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				key := iter.Val()
				scanned++

				raw, err := a.client.HGetAll(ctx, key).Result()
				if err != nil {
					return fmt.Errorf("failed to fetch snapshot %s: %w", key, err)
				}
				data := make(map[string]any, len(raw))
				for field, value := range raw {
					data[field] = value
				}

				if dryRun {
					if _, invalid := marketdata.Degenerate(data); invalid {
						fmt.Fprintln(cmd.OutOrStdout(), key)
						pruned++
					}
					continue
				}

				deleted, err := deleter.DeleteIfInvalid(ctx, key, data)
				if err != nil {
					return err
				}
				if deleted {
					pruned++
				}
			}
			if err := iter.Err(); err != nil {
				return fmt.Errorf("snapshot scan failed: %w", err)
			}

			a.log.Info("prune sweep complete",
				zap.Int("scanned", scanned),
				zap.Int("pruned", pruned),
				zap.Bool("dry_run", dryRun))
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d snapshots, pruned %d\n", scanned, pruned)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report degenerate snapshots without deleting")
	return cmd
}
