// Package cli wires the marketstore operational commands: pruning
// degenerate snapshots, inspecting and settling ledger entries, and
// serving Prometheus metrics.
package cli

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahrens917/marketstore/internal/config"
	"github.com/mahrens917/marketstore/internal/ledger"
	redisx "github.com/mahrens917/marketstore/internal/redis"
	"github.com/mahrens917/marketstore/pkg/logger"
)

// app carries the wiring every subcommand shares. Components are built
// lazily in PersistentPreRunE so flag parsing errors surface first.
type app struct {
	configPath string

	cfg    *config.Config
	log    *zap.Logger
	client *redis.Client

	repo    *ledger.RedisRepository
	updater *ledger.OptimisticUpdater
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.log = log

	client, err := redisx.NewClient(&cfg.Redis, log)
	if err != nil {
		return err
	}
	a.client = client

	keys := ledger.NewKeyBuilder(cfg.Ledger.KeyPrefix)
	a.repo = ledger.NewRedisRepository(client, keys, log)

	a.updater, err = ledger.NewOptimisticUpdater(client, keys, ledger.UpdaterConfig{
		MaxAttempts: cfg.Ledger.CASMaxAttempts,
		BackoffBase: cfg.Ledger.CASBackoffBase,
		BackoffMax:  cfg.Ledger.CASBackoffMax,
		Location:    cfg.Location(),
	}, log)
	return err
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// NewRootCmd builds the marketstore command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "marketstore",
		Short:         "Redis persistence layer for prediction-market trading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (optional)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup()
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a.close()
	}

	cmd.AddCommand(
		newPruneCmd(a),
		newWriteSnapshotCmd(a),
		newShowSnapshotCmd(a),
		newShowCmd(a),
		newSettleCmd(a),
		newRefreshPricesCmd(a),
		newServeMetricsCmd(a),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
