package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login USERNAME",
	Short: "Log in and print an access token",
	Long: `Check a username and password and print a bearer token.

The password is read from --password or, when omitted, from the first line
of standard input.

Examples:
  echo "$PASSWORD" | storefront login alice
  export STOREFRONT_TOKEN=$(storefront login alice --password s3cretpw1 --quiet)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}
		device, _ := cmd.Flags().GetString("device")
		quiet, _ := cmd.Flags().GetBool("quiet")

		return withManager(cmd, func(ctx context.Context, mgr *manager.Manager) error {
			token, err := mgr.Authenticate(ctx, args[0], password, device)
			if err != nil {
				return err
			}
			if quiet {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
				return err
			}
			return printJSON(cmd.OutOrStdout(), token)
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the profile behind the current token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			user, err := mgr.GetProfile(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redact(user))
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the current token for a fresh one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			token, err := mgr.Refresh(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), token)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the current token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := bearerToken(cmd)
		if err != nil {
			return err
		}
		return withManager(cmd, func(ctx context.Context, mgr *manager.Manager) error {
			if err := mgr.Logout(ctx, token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().String("password", "", "Password (default: read from stdin)")
	loginCmd.Flags().String("device", "cli", "Device recorded with the login")
	loginCmd.Flags().BoolP("quiet", "q", false, "Print only the access token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(logoutCmd)
}

// passwordFlag returns --password, or the first line of stdin when it is unset
func passwordFlag(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("password") {
		return cmd.Flags().GetString("password")
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		}
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// redact hides the password hash from command output
func redact(u *types.User) *types.User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	return &out
}

func redactPage(page *types.Page[types.User]) *types.Page[types.User] {
	out := *page
	out.Items = make([]*types.User, len(page.Items))
	for i, u := range page.Items {
		out.Items[i] = redact(u)
	}
	return &out
}
