package main

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/spf13/cobra"
)

// User commands
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register USERNAME",
	Short: "Register a new user account",
	Long: `Register a new user account with the user role.

Examples:
  storefront user register alice --email alice@example.com --password s3cretpw1
  echo "$PASSWORD" | storefront user register bob --email bob@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		fullName, _ := cmd.Flags().GetString("full-name")
		source, _ := cmd.Flags().GetString("source")
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		return withManager(cmd, func(ctx context.Context, mgr *manager.Manager) error {
			user, err := mgr.Register(ctx, types.UserDraft{
				Username: args[0],
				Email:    email,
				FullName: fullName,
				Password: password,
			}, source)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redact(user))
		})
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := pageFlags(cmd)
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")
		search, _ := cmd.Flags().GetString("search")
		sortBy, _ := cmd.Flags().GetString("sort-by")
		order, _ := cmd.Flags().GetString("order")

		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			users, err := mgr.ListUsers(ctx, p, manager.UserQuery{
				PageRequest: page,
				Role:        types.Role(role),
				Search:      search,
				SortBy:      sortBy,
				Order:       order,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redactPage(users))
		})
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			user, err := mgr.GetUser(ctx, p, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redact(user))
		})
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update a user",
	Long: `Update a user. Only the flags given are changed.

Users may change their own email, full name and password. Admins may change
any field of any user, but cannot deactivate themselves.

Examples:
  storefront user update $ID --full-name "Alice Liddell"
  storefront user update $ID --role admin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := userPatchFlags(cmd)
		if err != nil {
			return err
		}
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			user, err := mgr.UpdateUser(ctx, p, args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redact(user))
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a user (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			if err := mgr.DeleteUser(ctx, p, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ User deleted: %s\n", args[0])
			return nil
		})
	},
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate ID",
	Short: "Deactivate a user (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			user, err := mgr.DeactivateUser(ctx, p, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redact(user))
		})
	},
}

var userActivateCmd = &cobra.Command{
	Use:   "activate ID",
	Short: "Reactivate a user (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			user, err := mgr.ActivateUser(ctx, p, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redact(user))
		})
	},
}

var userStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show user statistics (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			stats, err := mgr.UserStats(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		})
	},
}

var userActivityCmd = &cobra.Command{
	Use:   "activity ID",
	Short: "Show a user's logins and orders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			activity, err := mgr.UserActivity(ctx, p, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), activity)
		})
	},
}

func init() {
	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userDeactivateCmd)
	userCmd.AddCommand(userActivateCmd)
	userCmd.AddCommand(userStatsCmd)
	userCmd.AddCommand(userActivityCmd)

	userRegisterCmd.Flags().String("email", "", "Email address (required)")
	userRegisterCmd.Flags().String("full-name", "", "Full name")
	userRegisterCmd.Flags().String("password", "", "Password (default: read from stdin)")
	userRegisterCmd.Flags().String("source", "cli", "Registration source recorded with the account")
	_ = userRegisterCmd.MarkFlagRequired("email")

	addPageFlags(userListCmd)
	userListCmd.Flags().String("role", "", "Filter by role (admin, user)")
	userListCmd.Flags().String("search", "", "Match username, email or full name")
	userListCmd.Flags().String("sort-by", manager.SortByCreatedAt, "Sort by created_at, username, email or login_count")
	userListCmd.Flags().String("order", manager.OrderDesc, "Sort order (asc, desc)")

	userUpdateCmd.Flags().String("email", "", "New email address")
	userUpdateCmd.Flags().String("full-name", "", "New full name")
	userUpdateCmd.Flags().String("password", "", "New password")
	userUpdateCmd.Flags().String("role", "", "New role (admin only)")
	userUpdateCmd.Flags().Bool("active", true, "Set the active flag (admin only)")

	rootCmd.AddCommand(userCmd)
}

// userPatchFlags builds a patch from the flags that were set
func userPatchFlags(cmd *cobra.Command) (types.UserPatch, error) {
	var patch types.UserPatch
	flags := cmd.Flags()
	if flags.Changed("email") {
		v, _ := flags.GetString("email")
		patch.Email = &v
	}
	if flags.Changed("full-name") {
		v, _ := flags.GetString("full-name")
		patch.FullName = &v
	}
	if flags.Changed("password") {
		v, _ := flags.GetString("password")
		patch.Password = &v
	}
	if flags.Changed("role") {
		v, _ := flags.GetString("role")
		role := types.Role(v)
		patch.Role = &role
	}
	if flags.Changed("active") {
		v, _ := flags.GetBool("active")
		patch.IsActive = &v
	}
	if len(patch.Fields()) == 0 {
		return patch, fmt.Errorf("nothing to update: set at least one of --email, --full-name, --password, --role, --active: %w", errdefs.ErrInvalidArgument)
	}
	return patch, nil
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("skip", 0, "Number of records to skip")
	cmd.Flags().Int("limit", manager.DefaultLimit, fmt.Sprintf("Page size (1-%d)", manager.MaxLimit))
}

func pageFlags(cmd *cobra.Command) (manager.PageRequest, error) {
	skip, err := cmd.Flags().GetInt("skip")
	if err != nil {
		return manager.PageRequest{}, err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return manager.PageRequest{}, err
	}
	return manager.PageRequest{Skip: skip, Limit: limit}, nil
}
