package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/config"
	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// tokenEnv holds the bearer token when --token is not given
const tokenEnv = config.EnvPrefix + "TOKEN"

// Exit codes by error class
const (
	exitError        = 1
	exitInvalid      = 2
	exitUnauthorized = 3
	exitForbidden    = 4
	exitNotFound     = 5
	exitConflict     = 6
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront - users, products and orders in one binary",
	Long: `Storefront manages user accounts, a product catalog and customer orders
backed by a single embedded database.

Stock is reserved and released transactionally: an order either reserves
every line or none, and cancelling restores exactly what was reserved.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Storefront version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("env-file", "", "dotenv file (default .env when present)")
	flags.String("data-dir", "", "Data directory (overrides config)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("log-json", false, "Log as JSON")
	flags.String("token", "", "Bearer token (default $"+tokenEnv+")")
}

// loadConfig reads the configuration and applies the global flags on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(config.Options{File: file, EnvFile: envFile})
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		cfg.Log.Level = log.Level(level)
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Init(cfg.LoggerConfig())
	metrics.SetVersion(Version)
	if cfg.UsesDefaultSecret() {
		log.Warn("Signing tokens with the built-in secret key; set " + config.EnvPrefix + "SECRET_KEY")
	}
	return cfg, nil
}

// withManager opens the data directory, runs fn and shuts the manager down
func withManager(cmd *cobra.Command, fn func(ctx context.Context, mgr *manager.Manager) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mgr, err := manager.NewManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storefront: %w", err)
	}

	runErr := fn(ctx, mgr)
	if err := mgr.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// withPrincipal is withManager for commands that need a caller
func withPrincipal(cmd *cobra.Command, fn func(ctx context.Context, mgr *manager.Manager, p types.Principal) error) error {
	token, err := bearerToken(cmd)
	if err != nil {
		return err
	}
	return withManager(cmd, func(ctx context.Context, mgr *manager.Manager) error {
		p, err := mgr.Principal(ctx, token)
		if err != nil {
			return err
		}
		return fn(ctx, mgr, p)
	})
}

func bearerToken(cmd *cobra.Command) (string, error) {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv(tokenEnv)
	}
	if token == "" {
		return "", fmt.Errorf("no token: run 'storefront login' and pass --token or set %s: %w", tokenEnv, errdefs.ErrUnauthenticated)
	}
	return token, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// describe prefixes an error with its class
func describe(err error) string {
	switch {
	case errdefs.IsInvalidArgument(err):
		return "bad request: " + err.Error()
	case errdefs.IsUnauthorized(err):
		return "unauthorized: " + err.Error()
	case errdefs.IsPermissionDenied(err):
		return "forbidden: " + err.Error()
	case errdefs.IsNotFound(err):
		return "not found: " + err.Error()
	case errdefs.IsAlreadyExists(err):
		return "conflict: " + err.Error()
	case errdefs.IsInternal(err), errdefs.IsDataLoss(err):
		return "storage failure: " + err.Error()
	}
	return err.Error()
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return exitError
	case errdefs.IsInvalidArgument(err):
		return exitInvalid
	case errdefs.IsUnauthorized(err):
		return exitUnauthorized
	case errdefs.IsPermissionDenied(err):
		return exitForbidden
	case errdefs.IsNotFound(err):
		return exitNotFound
	case errdefs.IsAlreadyExists(err):
		return exitConflict
	}
	return exitError
}
