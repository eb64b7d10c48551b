// Command reviewctl is the operator tool for proofdesk: database
// migrations, outbox maintenance, reconciliation and share passwords.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/proofdesk/internal/app"
	"github.com/heartmarshall/proofdesk/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "reviewctl",
	Short:         "Operate a proofdesk deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			return os.Setenv("CONFIG_PATH", configPath)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), app.BuildVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (overrides CONFIG_PATH)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "reviewctl:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg.Log), nil
}
