package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/events"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/policy"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
)

// ListProducts returns one page of products matching q. It needs no principal.
func (m *Manager) ListProducts(ctx context.Context, q ProductQuery) (*types.Page[types.Product], error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}

	products, err := m.products.Filter(ctx, q.match)
	if err != nil {
		return nil, err
	}
	byCreation(products, productCreated, productID)
	return paginate(products, q.PageRequest), nil
}

// GetProduct returns the product with id. It needs no principal.
func (m *Manager) GetProduct(ctx context.Context, id string) (*types.Product, error) {
	return m.products.Get(ctx, id)
}

// CreateProduct adds a product to the catalog
func (m *Manager) CreateProduct(ctx context.Context, principal types.Principal, draft types.ProductDraft) (product *types.Product, err error) {
	defer observe("create_product", metrics.NewTimer(), &err)

	if err := policy.Decide(principal, policy.ManageProducts, policy.Resource{}).Err(); err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	product = m.newProduct(draft)
	if err := m.products.Create(ctx, product); err != nil {
		return nil, err
	}

	m.productChanged(principal, events.EventProductCreated, product)
	return product, nil
}

func (m *Manager) newProduct(draft types.ProductDraft) *types.Product {
	return &types.Product{
		ID:          m.newID(),
		Name:        draft.Name,
		Description: draft.Description,
		Price:       draft.Price,
		Stock:       draft.Stock,
		Category:    draft.Category,
		CreatedAt:   m.now().UTC(),
	}
}

// UpdateProduct applies patch to the product with id
func (m *Manager) UpdateProduct(ctx context.Context, principal types.Principal, id string, patch types.ProductPatch) (product *types.Product, err error) {
	defer observe("update_product", metrics.NewTimer(), &err)

	if err := policy.Decide(principal, policy.ManageProducts, policy.Resource{}).Err(); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	product, err = m.products.Update(ctx, id, storage.PatchFunc[types.Product](func(p *types.Product) error {
		patch.Apply(p)
		p.UpdatedAt = &now
		return nil
	}))
	if err != nil {
		return nil, err
	}

	m.productChanged(principal, events.EventProductUpdated, product)
	return product, nil
}

// ApplyProduct creates the product described by draft, or updates the
// product with the same name. It reports whether a product was created.
func (m *Manager) ApplyProduct(ctx context.Context, principal types.Principal, draft types.ProductDraft) (product *types.Product, created bool, err error) {
	defer observe("apply_product", metrics.NewTimer(), &err)

	if err := policy.Decide(principal, policy.ManageProducts, policy.Resource{}).Err(); err != nil {
		return nil, false, err
	}
	if err := draft.Validate(); err != nil {
		return nil, false, err
	}

	now := m.now().UTC()
	err = m.store.Update(ctx, func(tx *storage.Tx) error {
		existing, err := storage.Products.Find(tx, "name", draft.Name)
		if errdefs.IsNotFound(err) {
			product, created = m.newProduct(draft), true
			return storage.Products.Create(tx, product)
		}
		if err != nil {
			return err
		}
		product, err = storage.Products.Update(tx, existing.ID, storage.PatchFunc[types.Product](func(p *types.Product) error {
			p.Description = draft.Description
			p.Price = draft.Price
			p.Stock = draft.Stock
			p.Category = draft.Category
			p.UpdatedAt = &now
			return nil
		}))
		return err
	})
	if err != nil {
		return nil, false, err
	}

	eventType := events.EventProductUpdated
	if created {
		eventType = events.EventProductCreated
	}
	m.productChanged(principal, eventType, product)
	return product, created, nil
}

// DeleteProduct removes the product with id. Orders keep their item snapshots.
func (m *Manager) DeleteProduct(ctx context.Context, principal types.Principal, id string) (err error) {
	defer observe("delete_product", metrics.NewTimer(), &err)

	if err := policy.Decide(principal, policy.ManageProducts, policy.Resource{}).Err(); err != nil {
		return err
	}

	deleted, err := m.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("product %s not found: %w", id, errdefs.ErrNotFound)
	}

	m.productChanged(principal, events.EventProductDeleted, &types.Product{ID: id})
	return nil
}

func (m *Manager) productChanged(principal types.Principal, eventType events.EventType, p *types.Product) {
	m.logger.Info().
		Str("product_id", p.ID).
		Str("event", string(eventType)).
		Str("by", principal.Username).
		Msg("Product changed")

	event := &events.Event{
		Type:    eventType,
		Actor:   principal.Username,
		Subject: p.ID,
	}
	if p.Name != "" {
		event.Metadata = map[string]string{
			"name":  p.Name,
			"price": p.Price.String(),
			"stock": fmt.Sprint(p.Stock),
		}
	}
	m.PublishEvent(event)
}

func productCreated(p *types.Product) time.Time { return p.CreatedAt }
func productID(p *types.Product) string         { return p.ID }
