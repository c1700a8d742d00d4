package manager

import (
	"context"
	"strings"

	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/google/uuid"
)

// BootstrapResult reports what Bootstrap created
type BootstrapResult struct {
	AdminCreated bool
	// GeneratedPassword is set when no admin password was configured
	GeneratedPassword string
	ProductsSeeded    int
}

// Bootstrap creates the configured admin when there are no users and the
// configured seed products when there are no products. It is a no-op on a
// populated store.
func (m *Manager) Bootstrap(ctx context.Context) (*BootstrapResult, error) {
	result := &BootstrapResult{}
	seed := m.cfg.Bootstrap

	var users, products int
	err := m.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		if users, err = storage.Users.Count(tx); err != nil {
			return err
		}
		products, err = storage.Products.Count(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if users == 0 {
		password := seed.AdminPassword
		if password == "" {
			password = "sf1-" + strings.ReplaceAll(uuid.New().String(), "-", "")
			result.GeneratedPassword = password
		}

		admin, err := m.createUser(ctx, types.UserDraft{
			Username: seed.AdminUsername,
			Email:    seed.AdminEmail,
			FullName: "Administrator",
			Password: password,
		}, types.RoleAdmin, "bootstrap")
		if err != nil {
			return nil, err
		}
		result.AdminCreated = true
		m.logger.Info().Str("user_id", admin.ID).Str("username", admin.Username).Msg("Created bootstrap admin")
	}

	if products == 0 && len(seed.Products) > 0 {
		err := m.store.Update(ctx, func(tx *storage.Tx) error {
			n, err := storage.Products.Count(tx)
			if err != nil || n > 0 {
				return err
			}
			for _, draft := range seed.Products {
				if err := storage.Products.Create(tx, m.newProduct(draft)); err != nil {
					return err
				}
				result.ProductsSeeded++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		m.logger.Info().Int("products", result.ProductsSeeded).Msg("Seeded products")
	}

	return result, nil
}
