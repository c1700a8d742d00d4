package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/spf13/cobra"
)

// Order commands
var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Place and manage orders",
}

var orderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders",
	Long: `List orders, oldest first. Users see their own orders; admins see all.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := pageFlags(cmd)
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetString("status")

		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			orders, err := mgr.ListOrders(ctx, p, manager.OrderQuery{
				PageRequest: page,
				Status:      types.OrderStatus(status),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), orders)
		})
	},
}

var orderGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			order, err := mgr.GetOrder(ctx, p, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), order)
		})
	},
}

var orderCreateCmd = &cobra.Command{
	Use:   "create --item PRODUCT_ID:QTY [--item ...]",
	Short: "Place an order",
	Long: `Place an order for the current user. Every line is reserved from stock
in one transaction; if any product is missing or short, nothing is reserved.

Examples:
  storefront order create --item $LAPTOP:1 --item $MOUSE:2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetStringArray("item")
		items, err := parseItems(raw)
		if err != nil {
			return err
		}
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			order, err := mgr.CreateOrder(ctx, p, types.OrderRequest{Items: items})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), order)
		})
	},
}

var orderStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Set an order's status (admin)",
	Long: `Set an order's status (admin). Setting "cancelled" cancels the order
and restores its stock.

Statuses: pending, processing, completed, cancelled`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			order, err := mgr.UpdateOrderStatus(ctx, p, args[0], types.OrderStatus(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), order)
		})
	},
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel an order and restore its stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			order, err := mgr.CancelOrder(ctx, p, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), order)
		})
	},
}

func init() {
	orderCmd.AddCommand(orderListCmd)
	orderCmd.AddCommand(orderGetCmd)
	orderCmd.AddCommand(orderCreateCmd)
	orderCmd.AddCommand(orderStatusCmd)
	orderCmd.AddCommand(orderCancelCmd)

	addPageFlags(orderListCmd)
	orderListCmd.Flags().String("status", "", "Filter by status")

	orderCreateCmd.Flags().StringArray("item", nil, "Order line as PRODUCT_ID:QTY (repeatable, required)")
	_ = orderCreateCmd.MarkFlagRequired("item")

	rootCmd.AddCommand(orderCmd)
}

// parseItems turns PRODUCT_ID:QTY pairs into order lines. A missing
// quantity means one unit.
func parseItems(raw []string) ([]types.OrderItemRequest, error) {
	items := make([]types.OrderItemRequest, 0, len(raw))
	for _, s := range raw {
		id, qty, found := strings.Cut(s, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("item %q has no product id: %w", s, errdefs.ErrInvalidArgument)
		}
		quantity := 1
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(qty))
			if err != nil {
				return nil, fmt.Errorf("item %q has a bad quantity: %w", s, errdefs.ErrInvalidArgument)
			}
			quantity = n
		}
		items = append(items, types.OrderItemRequest{ProductID: id, Quantity: quantity})
	}
	return items, nil
}
