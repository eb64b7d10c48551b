package main

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/proofdesk/internal/adapter/notify"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres/reviewstore"
	"github.com/heartmarshall/proofdesk/internal/app"
	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/outbox"
)

var (
	drainTimeout time.Duration
	pruneAge     time.Duration
	failedLimit  int
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and maintain the background write queue",
}

var outboxStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := app.OpenOutboxStore(cmd.Context(), cfg.Outbox, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "pending\t%d\n", stats.Pending)
		fmt.Fprintf(tw, "processing\t%d\n", stats.Processing)
		fmt.Fprintf(tw, "done\t%d\n", stats.Done)
		fmt.Fprintf(tw, "failed\t%d\n", stats.Failed)
		fmt.Fprintf(tw, "total\t%d\n", stats.Total)
		return tw.Flush()
	},
}

var outboxFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List items that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := app.OpenOutboxStore(cmd.Context(), cfg.Outbox, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		items, err := outbox.New(cfg.Outbox, store, nil, nil, logger).Failed(cmd.Context(), failedLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tFILE\tATTEMPTS\tUPDATED\tERROR")
		for _, it := range items {
			lastErr := ""
			if it.LastError != nil {
				lastErr = *it.LastError
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				it.ID, it.Kind, it.FileID, it.Attempts, it.UpdatedAt.Format(time.RFC3339), lastErr)
		}
		return tw.Flush()
	},
}

var outboxDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver pending items now and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), drainTimeout)
		defer cancel()

		ob, cleanup, err := openDeliveringOutbox(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := ob.Flush(ctx)
		if err != nil {
			return fmt.Errorf("drain: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delivered %d, failed %d\n", res.Done, res.Failed)
		return nil
	},
}

var outboxRetryCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Move failed items back to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := app.OpenOutboxStore(cmd.Context(), cfg.Outbox, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		n, err := outbox.New(cfg.Outbox, store, nil, nil, logger).RetryFailed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d\n", n)
		return nil
	},
}

var outboxPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete delivered and failed items older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := app.OpenOutboxStore(cmd.Context(), cfg.Outbox, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		n, err := outbox.New(cfg.Outbox, store, nil, nil, logger).Prune(cmd.Context(), pruneAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d\n", n)
		return nil
	},
}

func init() {
	outboxDrainCmd.Flags().DurationVar(&drainTimeout, "timeout", 2*time.Minute, "give up after this long")
	outboxPruneCmd.Flags().DurationVar(&pruneAge, "older-than", 7*24*time.Hour, "minimum age of pruned items")
	outboxFailedCmd.Flags().IntVar(&failedLimit, "limit", 50, "maximum items to list")

	outboxCmd.AddCommand(outboxStatsCmd, outboxFailedCmd, outboxDrainCmd, outboxRetryCmd, outboxPruneCmd)
	rootCmd.AddCommand(outboxCmd)
}

// openDeliveringOutbox wires an outbox that can reach the data store and
// the owner notifier.
func openDeliveringOutbox(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*outbox.Outbox, func(), error) {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	store, closeStore, err := app.OpenOutboxStore(ctx, cfg.Outbox, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		closeStore()
		pool.Close()
		return nil, nil, err
	}

	ob := outbox.New(cfg.Outbox, store, reviewstore.New(pool), notifier, logger)
	return ob, func() {
		closeStore()
		pool.Close()
	}, nil
}
