package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/lifecycle"
	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/policy"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInsufficientStock is returned when an order asks for more units than a
// product has. It is a bad request.
var ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", errdefs.ErrInvalidArgument)

// Manager performs the order transactions that touch both products and orders
type Manager struct {
	store   storage.Store
	machine lifecycle.Machine
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// NewManager creates an inventory manager on store
func NewManager(store storage.Store, machine lifecycle.Machine) *Manager {
	return &Manager{
		store:   store,
		machine: machine,
		logger:  log.WithComponent("inventory"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// CreateOrder reserves stock for every requested item and records a pending
// order owned by principal, in one transaction. Any user id in req is ignored.
func (m *Manager) CreateOrder(ctx context.Context, principal types.Principal, req types.OrderRequest) (order *types.Order, err error) {
	defer func() {
		metrics.InventoryTransactions.WithLabelValues("create", metrics.Result(err)).Inc()
		if errors.Is(err, ErrInsufficientStock) {
			metrics.StockRejections.Inc()
		}
	}()

	if err := policy.Decide(principal, policy.CreateOrder, policy.Resource{}).Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	order = &types.Order{
		ID:          m.newID(),
		UserID:      principal.ID,
		Status:      lifecycle.Initial,
		Items:       make([]types.OrderItem, 0, len(req.Items)),
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
	}

	err = m.store.Update(ctx, func(tx *storage.Tx) error {
		products := make(map[string]*types.Product)
		reserved := make(map[string]int)

		for _, item := range req.Items {
			product, ok := products[item.ProductID]
			if !ok {
				p, err := storage.Products.Get(tx, item.ProductID)
				if errdefs.IsNotFound(err) {
					return fmt.Errorf("product %s not found: %w", item.ProductID, errdefs.ErrInvalidArgument)
				}
				if err != nil {
					return err
				}
				product = p
				products[item.ProductID] = p
			}

			reserved[product.ID] += item.Quantity
			if reserved[product.ID] > product.Stock {
				return fmt.Errorf("product %q: requested %d, available %d: %w",
					product.Name, reserved[product.ID], product.Stock, ErrInsufficientStock)
			}

			line := types.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    item.Quantity,
				Price:       product.Price,
			}
			order.Items = append(order.Items, line)
			order.TotalAmount = order.TotalAmount.Add(line.Subtotal())
		}

		for id, quantity := range reserved {
			if _, err := storage.Products.Update(tx, id, adjustStock(-quantity, now)); err != nil {
				return err
			}
		}
		return storage.Orders.Create(tx, order)
	})
	if err != nil {
		m.logger.Debug().Err(err).Str("user_id", principal.ID).Msg("Order rejected")
		return nil, err
	}

	orderLog := log.WithOrderID(m.logger, order.ID)
	orderLog.Info().
		Str("user_id", order.UserID).
		Int("items", len(order.Items)).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("Order created")
	return order, nil
}

// CancelOrder returns the order's stock to its products and marks it
// cancelled, in one transaction. Items whose product has been deleted are
// skipped.
func (m *Manager) CancelOrder(ctx context.Context, principal types.Principal, orderID string) (order *types.Order, err error) {
	defer func() {
		metrics.InventoryTransactions.WithLabelValues("cancel", metrics.Result(err)).Inc()
	}()

	now := m.now().UTC()
	var skipped []string

	err = m.store.Update(ctx, func(tx *storage.Tx) error {
		current, err := storage.Orders.Get(tx, orderID)
		if err != nil {
			return err
		}

		decision := policy.Decide(principal, policy.CancelOrder, policy.Resource{
			OwnerID:     current.UserID,
			OrderStatus: current.Status,
		})
		if err := decision.Err(); err != nil {
			return err
		}
		if !lifecycle.CanCancel(current.Status) {
			return fmt.Errorf("order %s is already cancelled: %w", orderID, errdefs.ErrInvalidArgument)
		}

		for productID, quantity := range current.Quantities() {
			_, err := storage.Products.Update(tx, productID, adjustStock(quantity, now))
			if errdefs.IsNotFound(err) {
				skipped = append(skipped, productID)
				continue
			}
			if err != nil {
				return err
			}
		}

		order, err = storage.Orders.Update(tx, orderID, setStatus(types.OrderStatusCancelled, now))
		return err
	})
	if err != nil {
		return nil, err
	}

	orderLog := log.WithOrderID(m.logger, order.ID)
	event := orderLog.Info().Str("by", principal.Username)
	if len(skipped) > 0 {
		event = event.Strs("skipped_products", skipped)
	}
	event.Msg("Order cancelled")
	return order, nil
}

// UpdateStatus changes an order's status on behalf of an admin. A change to
// cancelled goes through CancelOrder so stock is restored.
func (m *Manager) UpdateStatus(ctx context.Context, principal types.Principal, orderID string, status types.OrderStatus) (*types.Order, error) {
	if err := policy.Decide(principal, policy.UpdateOrderStatus, policy.Resource{}).Err(); err != nil {
		return nil, err
	}
	if status == types.OrderStatusCancelled {
		return m.CancelOrder(ctx, principal, orderID)
	}

	var order *types.Order
	var from types.OrderStatus
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		current, err := storage.Orders.Get(tx, orderID)
		if err != nil {
			return err
		}
		from = current.Status
		if err := m.machine.Validate(from, status); err != nil {
			return err
		}
		order, err = storage.Orders.Update(tx, orderID, setStatus(status, m.now().UTC()))
		return err
	})
	if err != nil {
		return nil, err
	}

	orderLog := log.WithOrderID(m.logger, order.ID)
	orderLog.Info().
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("Order status changed")
	return order, nil
}

func adjustStock(delta int, now time.Time) storage.Patch[types.Product] {
	return storage.PatchFunc[types.Product](func(p *types.Product) error {
		if p.Stock+delta < 0 {
			return fmt.Errorf("product %s stock would become negative: %w", p.ID, ErrInsufficientStock)
		}
		p.Stock += delta
		p.UpdatedAt = &now
		return nil
	})
}

func setStatus(status types.OrderStatus, now time.Time) storage.Patch[types.Order] {
	return storage.PatchFunc[types.Order](func(o *types.Order) error {
		o.Status = status
		o.UpdatedAt = &now
		return nil
	})
}
