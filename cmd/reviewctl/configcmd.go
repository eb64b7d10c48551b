package main

import (
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/proofdesk/internal/config"
)

const redacted = "[redacted]"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(redact(*cfg)); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func redact(cfg config.Config) config.Config {
	if u, err := url.Parse(cfg.Database.DSN); err == nil && u.Scheme != "" {
		cfg.Database.DSN = u.Redacted()
	} else if cfg.Database.DSN != "" {
		// key=value DSNs are not parsed; hide them entirely.
		cfg.Database.DSN = redacted
	}
	if cfg.Auth.TokenSecret != "" {
		cfg.Auth.TokenSecret = redacted
	}
	if cfg.Auth.AdminToken != "" {
		cfg.Auth.AdminToken = redacted
	}
	if cfg.Storage.SecretKey != "" {
		cfg.Storage.SecretKey = redacted
	}
	return cfg
}
