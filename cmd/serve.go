package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lodestone-data/lodestone/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if key, created, err := a.tenants.EnsureDefault(ctx); err != nil {
		return err
	} else if created {
		// Shown once; only the hash is stored.
		logger.Info("created default tenant", "api_key", key)
	}

	srv := api.NewServer(api.Deps{
		Pool:        a.pool,
		Assistant:   a.assistant,
		Convs:       a.convs,
		Configs:     a.configs,
		Audit:       a.audit,
		Tenants:     a.tenants,
		RequireAuth: a.cfg.RequireAuth,
		Logger:      logger,
	})
	return srv.Run(ctx, a.cfg.HTTPAddr)
}
