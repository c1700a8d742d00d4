package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/storefront/pkg/api"
	"github.com/cuemby/storefront/pkg/events"
	"github.com/cuemby/storefront/pkg/jobs"
	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront service",
	Long: `Run the storefront service in the foreground.

On start the store is bootstrapped (first admin and seed products on an
empty database), background jobs are scheduled and the health endpoints
(/health, /ready, /live, /metrics) are served until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the first admin and seed products on an empty database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *manager.Manager) error {
			result, err := mgr.Bootstrap(ctx)
			if err != nil {
				return err
			}
			reportBootstrap(cmd, mgr, result)
			return nil
		})
	},
}

func init() {
	serveCmd.Flags().String("health-addr", "", "Health and metrics listen address (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("health-addr") {
		cfg.Server.HealthAddr, _ = cmd.Flags().GetString("health-addr")
	}
	logger := log.WithComponent("serve")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	mgr, err := manager.NewManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storefront: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()
	metrics.RegisterComponent(metrics.ComponentStorage, true, "store open")

	result, err := mgr.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap: %w", err)
	}
	reportBootstrap(cmd, mgr, result)

	events.LogEvents(mgr.GetEventBroker())

	sched, err := jobs.NewScheduler(cfg.Jobs, cfg.DataDir, mgr)
	if err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}
	sched.Start()

	errCh := make(chan error, 1)
	var hs *api.HealthServer
	if cfg.Server.HealthAddr != "" {
		hs = api.NewHealthServer(mgr)
		go func() {
			if err := hs.Start(cfg.Server.HealthAddr); err != nil {
				errCh <- fmt.Errorf("health server: %w", err)
			}
		}()
	} else {
		metrics.RegisterComponent(metrics.ComponentAPI, true, "disabled")
	}

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("health_addr", cfg.Server.HealthAddr).
		Strs("jobs", sched.Jobs()).
		Str("version", Version).
		Msg("Storefront running")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Shutting down after failure")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if hs != nil {
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Health server did not stop cleanly")
		}
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Jobs did not finish before shutdown")
	}
	return runErr
}

func reportBootstrap(cmd *cobra.Command, mgr *manager.Manager, result *manager.BootstrapResult) {
	out := cmd.ErrOrStderr()
	if result.AdminCreated {
		fmt.Fprintf(out, "✓ Admin user created: %s\n", mgr.Config().Bootstrap.AdminUsername)
		if result.GeneratedPassword != "" {
			fmt.Fprintf(out, "  Generated password: %s\n", result.GeneratedPassword)
			fmt.Fprintln(out, "  Store it now; it will not be shown again.")
		}
	}
	if result.ProductsSeeded > 0 {
		fmt.Fprintf(out, "✓ Seeded %d products\n", result.ProductsSeeded)
	}
}
