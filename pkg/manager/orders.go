package manager

import (
	"context"
	"time"

	"github.com/cuemby/storefront/pkg/events"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/policy"
	"github.com/cuemby/storefront/pkg/types"
)

// ListOrders returns one page of the principal's orders, or of every order
// when the principal is an admin
func (m *Manager) ListOrders(ctx context.Context, principal types.Principal, q OrderQuery) (*types.Page[types.Order], error) {
	if err := policy.Decide(principal, policy.ViewOrder, policy.Resource{OwnerID: principal.ID}).Err(); err != nil {
		return nil, err
	}
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}

	all := policy.Decide(principal, policy.ListAllOrders, policy.Resource{}).Allowed
	orders, err := m.orders.Filter(ctx, func(o *types.Order) bool {
		if !all && o.UserID != principal.ID {
			return false
		}
		return q.Status == "" || o.Status == q.Status
	})
	if err != nil {
		return nil, err
	}
	byCreation(orders, orderCreated, orderID)
	return paginate(orders, q.PageRequest), nil
}

// GetOrder returns the order with id if the principal owns it or is an admin
func (m *Manager) GetOrder(ctx context.Context, principal types.Principal, id string) (*types.Order, error) {
	order, err := m.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Decide(principal, policy.ViewOrder, policy.Resource{OwnerID: order.UserID}).Err(); err != nil {
		return nil, err
	}
	return order, nil
}

// CreateOrder places an order for the principal, reserving stock
func (m *Manager) CreateOrder(ctx context.Context, principal types.Principal, req types.OrderRequest) (order *types.Order, err error) {
	defer observe("create_order", metrics.NewTimer(), &err)

	order, err = m.inventory.CreateOrder(ctx, principal, req)
	if err != nil {
		return nil, err
	}

	m.PublishEvent(&events.Event{
		Type:    events.EventOrderCreated,
		Actor:   principal.Username,
		Subject: order.ID,
		Message: "Order created",
		Metadata: map[string]string{
			"user_id": order.UserID,
			"total":   order.TotalAmount.StringFixed(2),
		},
	})
	return order, nil
}

// UpdateOrderStatus changes an order's status. Admin only; a change to
// cancelled restores stock.
func (m *Manager) UpdateOrderStatus(ctx context.Context, principal types.Principal, id string, status types.OrderStatus) (order *types.Order, err error) {
	defer observe("update_order_status", metrics.NewTimer(), &err)

	order, err = m.inventory.UpdateStatus(ctx, principal, id, status)
	if err != nil {
		return nil, err
	}

	eventType := events.EventOrderStatusChanged
	if order.Status == types.OrderStatusCancelled {
		eventType = events.EventOrderCancelled
	}
	m.PublishEvent(&events.Event{
		Type:     eventType,
		Actor:    principal.Username,
		Subject:  order.ID,
		Message:  "Order status changed",
		Metadata: map[string]string{"status": string(order.Status)},
	})
	return order, nil
}

// CancelOrder cancels an order and restores its stock. Owners may cancel
// pending orders; admins may cancel any order that is not already cancelled.
func (m *Manager) CancelOrder(ctx context.Context, principal types.Principal, id string) (order *types.Order, err error) {
	defer observe("cancel_order", metrics.NewTimer(), &err)

	order, err = m.inventory.CancelOrder(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	m.PublishEvent(&events.Event{
		Type:     events.EventOrderCancelled,
		Actor:    principal.Username,
		Subject:  order.ID,
		Message:  "Order cancelled",
		Metadata: map[string]string{"user_id": order.UserID},
	})
	return order, nil
}

func orderCreated(o *types.Order) time.Time { return o.CreatedAt }
func orderID(o *types.Order) string         { return o.ID }
