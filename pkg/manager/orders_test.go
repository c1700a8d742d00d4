package manager

import (
	"context"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/config"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderFor(productID string, qty int) types.OrderRequest {
	return types.OrderRequest{Items: []types.OrderItemRequest{{ProductID: productID, Quantity: qty}}}
}

func TestOrderOwnershipIsolation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	admin := registerAdmin(t, m, "admin")
	alice := register(t, m, "alice")
	bob := register(t, m, "bob")
	pen := addProduct(t, m, "Pen", "1.25", 10)

	req := orderFor(pen.ID, 2)
	req.UserID = bob.ID
	order, err := m.CreateOrder(ctx, alice.Principal(), req)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, order.UserID, "owner comes from the principal")
	assert.Equal(t, "2.50", order.TotalAmount.StringFixed(2))

	got, err := m.GetOrder(ctx, alice.Principal(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = m.GetOrder(ctx, bob.Principal(), order.ID)
	assert.True(t, errdefs.IsPermissionDenied(err))

	_, err = m.GetOrder(ctx, admin, order.ID)
	assert.NoError(t, err)

	_, err = m.GetOrder(ctx, admin, "missing")
	assert.True(t, errdefs.IsNotFound(err))

	page, err := m.ListOrders(ctx, bob.Principal(), OrderQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	page, err = m.ListOrders(ctx, alice.Principal(), OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = m.CreateOrder(ctx, bob.Principal(), orderFor(pen.ID, 1))
	require.NoError(t, err)

	page, err = m.ListOrders(ctx, admin, OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	_, err = m.CancelOrder(ctx, bob.Principal(), order.ID)
	assert.True(t, errdefs.IsPermissionDenied(err))
}

func TestListOrdersStatusFilter(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	alice := register(t, m, "alice")
	pen := addProduct(t, m, "Pen", "1", 10)

	first, err := m.CreateOrder(ctx, alice.Principal(), orderFor(pen.ID, 1))
	require.NoError(t, err)
	second, err := m.CreateOrder(ctx, alice.Principal(), orderFor(pen.ID, 1))
	require.NoError(t, err)
	_, err = m.CancelOrder(ctx, alice.Principal(), first.ID)
	require.NoError(t, err)

	page, err := m.ListOrders(ctx, alice.Principal(), OrderQuery{Status: types.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, second.ID, page.Items[0].ID)

	page, err = m.ListOrders(ctx, alice.Principal(), OrderQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, first.ID, page.Items[0].ID, "oldest first")

	_, err = m.ListOrders(ctx, alice.Principal(), OrderQuery{Status: "shipped"})
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestOrderStockAccounting(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	admin := registerAdmin(t, m, "admin")
	alice := register(t, m, "alice")
	pen := addProduct(t, m, "Pen", "1", 10)

	stock := func() int {
		p, err := m.GetProduct(ctx, pen.ID)
		require.NoError(t, err)
		return p.Stock
	}

	order, err := m.CreateOrder(ctx, alice.Principal(), orderFor(pen.ID, 4))
	require.NoError(t, err)
	assert.Equal(t, 6, stock())

	_, err = m.CreateOrder(ctx, alice.Principal(), orderFor(pen.ID, 7))
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, 6, stock())

	order, err = m.UpdateOrderStatus(ctx, admin, order.ID, types.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusProcessing, order.Status)

	_, err = m.CancelOrder(ctx, alice.Principal(), order.ID)
	assert.True(t, errdefs.IsInvalidArgument(err), "owners only cancel pending orders")

	_, err = m.UpdateOrderStatus(ctx, alice.Principal(), order.ID, types.OrderStatusCompleted)
	assert.True(t, errdefs.IsPermissionDenied(err))

	order, err = m.UpdateOrderStatus(ctx, admin, order.ID, types.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, order.Status)
	assert.Equal(t, 10, stock())

	_, err = m.CancelOrder(ctx, admin, order.ID)
	assert.True(t, errdefs.IsInvalidArgument(err))
	_, err = m.UpdateOrderStatus(ctx, admin, order.ID, types.OrderStatusPending)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, 10, stock(), "stock is restored once")
}

func TestStrictTransitions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Orders = config.OrdersConfig{StrictTransitions: true}
	m := newTestManagerWith(t, cfg)
	ctx := context.Background()
	admin := registerAdmin(t, m, "admin")
	pen := addProduct(t, m, "Pen", "1", 10)

	order, err := m.CreateOrder(ctx, admin, orderFor(pen.ID, 1))
	require.NoError(t, err)

	_, err = m.UpdateOrderStatus(ctx, admin, order.ID, types.OrderStatusCompleted)
	assert.True(t, errdefs.IsInvalidArgument(err), "cannot skip processing")

	_, err = m.UpdateOrderStatus(ctx, admin, order.ID, types.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = m.UpdateOrderStatus(ctx, admin, order.ID, types.OrderStatusPending)
	assert.True(t, errdefs.IsInvalidArgument(err), "no way back")
}
