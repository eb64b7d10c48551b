package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/proofdesk/internal/adapter/postgres"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres/reviewstore"
	"github.com/heartmarshall/proofdesk/internal/app"
	"github.com/heartmarshall/proofdesk/internal/outbox"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <shareID>",
	Short: "Report abandoned review writes the data store does not reflect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		obStore, closeStore, err := app.OpenOutboxStore(ctx, cfg.Outbox, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		store := reviewstore.New(pool)
		project, err := store.LoadProjectByShareID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}

		drifts, err := outbox.NewReconciler(store, obStore, logger).ReconcileFailed(ctx, project.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(drifts) == 0 {
			fmt.Fprintf(out, "%s: store matches every recorded action\n", project.Name)
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tFILE\tNAME\tEXPECTED\tSTORED")
		for _, d := range drifts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Kind, d.FileID, d.FileName, d.Local, d.Remote)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		return fmt.Errorf("%d abandoned writes for %s", len(drifts), project.Name)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
