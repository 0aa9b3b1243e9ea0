package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/pbkit/client"
	"github.com/kbukum/pbkit/component"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/observability"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect once and print the health of the realtime connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(cfg.Logging)

		path, err := sessionPath(cfg.Session)
		if err != nil {
			return err
		}
		sess, err := loadSession(path)
		if err != nil {
			return err
		}
		health, err := status(cmd.Context(), cfg, sess)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(health); err != nil {
			return err
		}
		if health.Status != component.StatusHealthy {
			return fmt.Errorf("backend is %s", health.Status)
		}
		return nil
	},
}

// status starts the realtime connection, collects health and stops it.
// A failed connect is reported in the health, not as an error.
func status(ctx context.Context, cfg *Config, sess *Session) (*observability.ServiceHealth, error) {
	c, err := client.New(cfg.Client, client.WithAuthStore(sess.authStore(cfg.Client.BaseURL)))
	if err != nil {
		return nil, err
	}
	defer c.Close()

	registry, err := newRegistry(c)
	if err != nil {
		return nil, err
	}
	if err := registry.StartAll(ctx); err != nil {
		logger.WithComponent("pbtail").Warn("Realtime connect failed", logger.Fields(logger.FieldError, err.Error()))
	}
	defer func() { _ = registry.StopAll(context.Background()) }()

	return observability.Aggregate(cfg.Name, cfg.Observability.ServiceVersion, registry.HealthAll(ctx)), nil
}
