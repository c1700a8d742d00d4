package main

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Product commands
var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage the product catalog",
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products",
	Long: `List products, oldest first. No token is needed.

Examples:
  storefront product list --category electronics --max-price 500`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := pageFlags(cmd)
		if err != nil {
			return err
		}
		category, _ := cmd.Flags().GetString("category")
		minPrice, err := optionalPrice(cmd, "min-price")
		if err != nil {
			return err
		}
		maxPrice, err := optionalPrice(cmd, "max-price")
		if err != nil {
			return err
		}

		return withManager(cmd, func(ctx context.Context, mgr *manager.Manager) error {
			products, err := mgr.ListProducts(ctx, manager.ProductQuery{
				PageRequest: page,
				Category:    category,
				MinPrice:    minPrice,
				MaxPrice:    maxPrice,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), products)
		})
	},
}

var productGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *manager.Manager) error {
			product, err := mgr.GetProduct(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), product)
		})
	},
}

var productCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a product (admin)",
	Long: `Create a product (admin).

Examples:
  storefront product create "Laptop" --price 999.99 --stock 10 --category electronics`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := optionalPrice(cmd, "price")
		if err != nil {
			return err
		}
		if price == nil {
			return fmt.Errorf("--price is required: %w", errdefs.ErrInvalidArgument)
		}
		description, _ := cmd.Flags().GetString("description")
		stock, _ := cmd.Flags().GetInt("stock")
		category, _ := cmd.Flags().GetString("category")

		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			product, err := mgr.CreateProduct(ctx, p, types.ProductDraft{
				Name:        args[0],
				Description: description,
				Price:       *price,
				Stock:       stock,
				Category:    category,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), product)
		})
	},
}

var productUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update a product (admin)",
	Long: `Update a product (admin). Only the flags given are changed.

Examples:
  storefront product update $ID --stock 25
  storefront product update $ID --price 899.00 --description "Refurbished"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := productPatchFlags(cmd)
		if err != nil {
			return err
		}
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			product, err := mgr.UpdateProduct(ctx, p, args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), product)
		})
	},
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a product (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
			if err := mgr.DeleteProduct(ctx, p, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Product deleted: %s\n", args[0])
			return nil
		})
	},
}

func init() {
	productCmd.AddCommand(productListCmd)
	productCmd.AddCommand(productGetCmd)
	productCmd.AddCommand(productCreateCmd)
	productCmd.AddCommand(productUpdateCmd)
	productCmd.AddCommand(productDeleteCmd)

	addPageFlags(productListCmd)
	productListCmd.Flags().String("category", "", "Filter by category")
	productListCmd.Flags().String("min-price", "", "Minimum price")
	productListCmd.Flags().String("max-price", "", "Maximum price")

	productCreateCmd.Flags().String("description", "", "Description")
	productCreateCmd.Flags().String("price", "", "Unit price, e.g. 19.99 (required)")
	productCreateCmd.Flags().Int("stock", 0, "Units in stock")
	productCreateCmd.Flags().String("category", "", "Category (required)")
	_ = productCreateCmd.MarkFlagRequired("price")
	_ = productCreateCmd.MarkFlagRequired("category")

	productUpdateCmd.Flags().String("name", "", "New name")
	productUpdateCmd.Flags().String("description", "", "New description")
	productUpdateCmd.Flags().String("price", "", "New unit price")
	productUpdateCmd.Flags().Int("stock", 0, "New stock level")
	productUpdateCmd.Flags().String("category", "", "New category")

	rootCmd.AddCommand(productCmd)
}

// optionalPrice parses a decimal flag, returning nil when it was not set
func optionalPrice(cmd *cobra.Command, name string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	raw, _ := cmd.Flags().GetString(name)
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s %q is not a number: %w", name, raw, errdefs.ErrInvalidArgument)
	}
	return &price, nil
}

func productPatchFlags(cmd *cobra.Command) (types.ProductPatch, error) {
	var patch types.ProductPatch
	flags := cmd.Flags()
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		patch.Name = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	price, err := optionalPrice(cmd, "price")
	if err != nil {
		return patch, err
	}
	patch.Price = price
	if flags.Changed("stock") {
		v, _ := flags.GetInt("stock")
		patch.Stock = &v
	}
	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		patch.Category = &v
	}
	if patch.Empty() {
		return patch, fmt.Errorf("nothing to update: %w", errdefs.ErrInvalidArgument)
	}
	return patch, nil
}
