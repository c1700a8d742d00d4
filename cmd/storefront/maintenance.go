package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cuemby/storefront/pkg/migrate"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate --from DIR",
	Short: "Import the JSON collection files of the legacy service",
	Long: `Import users.json, products.json and orders.json from a legacy data
directory in a single transaction.

Records whose id is already stored are skipped, so the import can be run
again safely. Unless --dry-run is given the database file is backed up first.

Examples:
  storefront migrate --from /srv/legacy/data --dry-run
  storefront migrate --from /srv/legacy/data --backup /tmp/storefront.db.bak`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetString("backup")

		return withStore(cmd, func(ctx context.Context, store *storage.BoltStore) error {
			if !dryRun {
				if backup == "" {
					backup = store.Path() + ".backup"
				}
				n, err := backupTo(ctx, store, backup)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Backup created: %s (%d bytes)\n", backup, n)
			}

			report, err := migrate.Import(ctx, store, from, migrate.Options{DryRun: dryRun})
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintln(cmd.ErrOrStderr(), "Dry run completed. No changes made.")
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot --out DIR",
	Short: "Export every collection as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		compress, _ := cmd.Flags().GetBool("compress")

		return withStore(cmd, func(ctx context.Context, store *storage.BoltStore) error {
			paths, err := storage.WriteSnapshot(ctx, store, out, compress)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", p)
			}
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore --from DIR",
	Short: "Replace every collection with a snapshot",
	Long: `Replace the contents of every collection with the snapshot in DIR.

All collections are replaced in one transaction: a missing or damaged
snapshot file leaves the database untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")

		return withStore(cmd, func(ctx context.Context, store *storage.BoltStore) error {
			counts, err := storage.RestoreSnapshot(ctx, store, from)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d records\n", name, counts[name])
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.Flags().String("from", "", "Legacy data directory (required)")
	migrateCmd.Flags().Bool("dry-run", false, "Check and count records without importing")
	migrateCmd.Flags().String("backup", "", "Backup file (default: <data-dir>/storefront.db.backup)")
	_ = migrateCmd.MarkFlagRequired("from")

	snapshotCmd.Flags().String("out", "", "Output directory (required)")
	snapshotCmd.Flags().Bool("compress", false, "Compress files with zstd")
	_ = snapshotCmd.MarkFlagRequired("out")

	restoreCmd.Flags().String("from", "", "Snapshot directory (required)")
	_ = restoreCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(restoreCmd)
}

// withStore opens the database without the rest of the manager
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *storage.BoltStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	runErr := fn(cmd.Context(), store)
	if err := store.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func backupTo(ctx context.Context, store *storage.BoltStore, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return 0, fmt.Errorf("failed to create backup directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create backup: %w", err)
	}
	n, err := store.Backup(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}
	return n, nil
}
