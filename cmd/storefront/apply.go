package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// KindProduct is the only resource kind apply understands
const KindProduct = "Product"

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a product manifest",
	Long: `Create or update products from a YAML manifest (admin).

A manifest holds one or more documents separated by "---". Products are
matched by name: an existing product is updated to the manifest, a new one
is created.

Example manifest:
  apiVersion: storefront/v1
  kind: Product
  metadata:
    name: Laptop
  spec:
    description: 14 inch, 16GB
    price: 999.99
    stock: 10
    category: electronics

Examples:
  storefront apply -f catalog.yaml`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is one document of a manifest
type Resource struct {
	APIVersion string             `yaml:"apiVersion"`
	Kind       string             `yaml:"kind"`
	Metadata   ResourceMetadata   `yaml:"metadata"`
	Spec       types.ProductDraft `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	drafts, err := decodeManifest(f)
	if err != nil {
		return err
	}

	return withPrincipal(cmd, func(ctx context.Context, mgr *manager.Manager, p types.Principal) error {
		out := cmd.OutOrStdout()
		for _, draft := range drafts {
			product, created, err := mgr.ApplyProduct(ctx, p, draft)
			if err != nil {
				return fmt.Errorf("applying product %q: %w", draft.Name, err)
			}
			if created {
				fmt.Fprintf(out, "✓ Product created: %s (ID: %s)\n", product.Name, product.ID)
			} else {
				fmt.Fprintf(out, "✓ Product updated: %s (ID: %s)\n", product.Name, product.ID)
			}
		}
		return nil
	})
}

// decodeManifest reads every document of a manifest and validates it
func decodeManifest(r io.Reader) ([]types.ProductDraft, error) {
	dec := yaml.NewDecoder(r)
	var drafts []types.ProductDraft
	for i := 0; ; i++ {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML document %d: %w: %w", i, errdefs.ErrInvalidArgument, err)
		}
		if res.Kind != KindProduct {
			return nil, fmt.Errorf("document %d: unsupported resource kind %q: %w", i, res.Kind, errdefs.ErrInvalidArgument)
		}

		draft := res.Spec
		if draft.Name == "" {
			draft.Name = res.Metadata.Name
		}
		if err := draft.Validate(); err != nil {
			return nil, fmt.Errorf("document %d (%s): %w", i, draft.Name, err)
		}
		drafts = append(drafts, draft)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("manifest has no resources: %w", errdefs.ErrInvalidArgument)
	}
	return drafts, nil
}
