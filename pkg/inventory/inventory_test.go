package inventory

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/lifecycle"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = types.Principal{ID: "admin-1", Username: "admin", Role: types.RoleAdmin, IsActive: true}
	alice = types.Principal{ID: "user-1", Username: "alice", Role: types.RoleUser, IsActive: true}
	bob   = types.Principal{ID: "user-2", Username: "bob", Role: types.RoleUser, IsActive: true}
)

func newTestManager(t *testing.T, machine lifecycle.Machine) (*Manager, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewManager(store, machine), store
}

func addProduct(t *testing.T, store storage.Store, id, price string, stock int) {
	t.Helper()
	err := storage.NewRepo(store, storage.Products).Create(context.Background(), &types.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "test",
	})
	require.NoError(t, err)
}

func stockOf(t *testing.T, store storage.Store, id string) int {
	t.Helper()
	p, err := storage.NewRepo(store, storage.Products).Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func countOrders(t *testing.T, store storage.Store) int {
	t.Helper()
	orders, err := storage.NewRepo(store, storage.Orders).All(context.Background())
	require.NoError(t, err)
	return len(orders)
}

func request(items ...types.OrderItemRequest) types.OrderRequest {
	return types.OrderRequest{Items: items}
}

func item(productID string, quantity int) types.OrderItemRequest {
	return types.OrderItemRequest{ProductID: productID, Quantity: quantity}
}

func TestCreateOrder(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	ctx := context.Background()
	addProduct(t, store, "p1", "10.50", 10)
	addProduct(t, store, "p2", "0.10", 5)

	req := request(item("p1", 2), item("p2", 3))
	req.UserID = bob.ID

	created, err := m.CreateOrder(ctx, alice, req)
	require.NoError(t, err)

	assert.Equal(t, alice.ID, created.UserID, "owner comes from the principal")
	assert.Equal(t, types.OrderStatusPending, created.Status)
	assert.Equal(t, "21.30", created.TotalAmount.StringFixed(2))
	require.Len(t, created.Items, 2)
	assert.Equal(t, "Product p1", created.Items[0].ProductName)
	assert.True(t, created.Items[0].Price.Equal(decimal.RequireFromString("10.50")))

	assert.Equal(t, 8, stockOf(t, store, "p1"))
	assert.Equal(t, 2, stockOf(t, store, "p2"))

	stored, err := storage.NewRepo(store, storage.Orders).Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, stored.UserID)
	assert.True(t, stored.TotalAmount.Equal(created.TotalAmount))
}

func TestCreateOrderRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		req   types.OrderRequest
		check func(error) bool
	}{
		{"no items", request(), errdefs.IsInvalidArgument},
		{"zero quantity", request(item("p1", 0)), errdefs.IsInvalidArgument},
		{"missing product", request(item("p1", 1), item("nope", 1)), errdefs.IsInvalidArgument},
		{"insufficient stock", request(item("p1", 1), item("p2", 6)), errdefs.IsInvalidArgument},
		{"cumulative lines exceed stock", request(item("p2", 3), item("p2", 3)), errdefs.IsInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newTestManager(t, lifecycle.Machine{})
			addProduct(t, store, "p1", "1.00", 10)
			addProduct(t, store, "p2", "1.00", 5)

			_, err := m.CreateOrder(ctx, alice, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)

			assert.Equal(t, 10, stockOf(t, store, "p1"), "no partial stock change")
			assert.Equal(t, 5, stockOf(t, store, "p2"))
			assert.Zero(t, countOrders(t, store))
		})
	}
}

func TestCreateOrderInsufficientStockIsTyped(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	addProduct(t, store, "p1", "1.00", 1)

	_, err := m.CreateOrder(context.Background(), alice, request(item("p1", 2)))
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCreateOrderInactivePrincipal(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	addProduct(t, store, "p1", "1.00", 1)

	inactive := alice
	inactive.IsActive = false
	_, err := m.CreateOrder(context.Background(), inactive, request(item("p1", 1)))
	assert.True(t, errdefs.IsPermissionDenied(err))
}

func TestConcurrentCreateOrderRace(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	addProduct(t, store, "p1", "2.00", 5)

	const buyers = 10
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateOrder(context.Background(), alice, request(item("p1", 1)))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int32(5), rejected.Load())
	assert.Equal(t, 0, stockOf(t, store, "p1"))
	assert.Equal(t, 5, countOrders(t, store))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	ctx := context.Background()
	addProduct(t, store, "p1", "3.00", 10)

	created, err := m.CreateOrder(ctx, alice, request(item("p1", 2)))
	require.NoError(t, err)
	assert.Equal(t, 8, stockOf(t, store, "p1"))

	cancelled, err := m.CancelOrder(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.UpdatedAt)
	assert.Equal(t, 10, stockOf(t, store, "p1"))

	_, err = m.CancelOrder(ctx, admin, created.ID)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, 10, stockOf(t, store, "p1"), "stock is restored only once")
}

func TestOrderLogsCarryOrderID(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	var buf bytes.Buffer
	m.logger = zerolog.New(&buf).With().Str("component", "inventory").Logger()
	ctx := context.Background()
	addProduct(t, store, "p1", "3.00", 10)

	created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
	require.NoError(t, err)
	_, err = m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = m.CancelOrder(ctx, admin, created.ID)
	require.NoError(t, err)

	var messages []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, created.ID, entry["order_id"])
		assert.Equal(t, "inventory", entry["component"])
		messages = append(messages, entry["message"].(string))
	}
	assert.Equal(t, []string{"Order created", "Order status changed", "Order cancelled"}, messages)
}

func TestCancelOrderAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("missing order", func(t *testing.T) {
		m, _ := newTestManager(t, lifecycle.Machine{})
		_, err := m.CancelOrder(ctx, admin, "nope")
		assert.True(t, errdefs.IsNotFound(err))
	})

	t.Run("other user", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
		require.NoError(t, err)

		_, err = m.CancelOrder(ctx, bob, created.ID)
		assert.True(t, errdefs.IsPermissionDenied(err))
		assert.Equal(t, 2, stockOf(t, store, "p1"))
	})

	t.Run("owner after processing", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
		require.NoError(t, err)
		_, err = m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusProcessing)
		require.NoError(t, err)

		_, err = m.CancelOrder(ctx, alice, created.ID)
		assert.True(t, errdefs.IsInvalidArgument(err))
		assert.Equal(t, 2, stockOf(t, store, "p1"))
	})

	t.Run("admin after completion", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
		require.NoError(t, err)
		_, err = m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusCompleted)
		require.NoError(t, err)

		_, err = m.CancelOrder(ctx, admin, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stockOf(t, store, "p1"))
	})
}

func TestCancelOrderSkipsDeletedProducts(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	ctx := context.Background()
	addProduct(t, store, "p1", "1.00", 5)
	addProduct(t, store, "p2", "1.00", 5)

	created, err := m.CreateOrder(ctx, alice, request(item("p1", 1), item("p2", 2)))
	require.NoError(t, err)

	deleted, err := storage.NewRepo(store, storage.Products).Delete(ctx, "p2")
	require.NoError(t, err)
	require.True(t, deleted)

	cancelled, err := m.CancelOrder(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 5, stockOf(t, store, "p1"))
}

func TestStockConservation(t *testing.T) {
	m, store := newTestManager(t, lifecycle.Machine{})
	ctx := context.Background()
	const initial = 40
	addProduct(t, store, "p1", "1.00", initial)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := m.CreateOrder(ctx, alice, request(item("p1", 1+i%3)))
			if err != nil {
				return
			}
			if i%2 == 0 {
				_, _ = m.CancelOrder(ctx, alice, created.ID)
			}
		}(i)
	}
	wg.Wait()

	orders, err := storage.NewRepo(store, storage.Orders).All(ctx)
	require.NoError(t, err)
	reserved := 0
	for _, o := range orders {
		if o.Status != types.OrderStatusCancelled {
			reserved += o.Quantities()["p1"]
		}
	}
	assert.Equal(t, initial, stockOf(t, store, "p1")+reserved)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("admin only", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
		require.NoError(t, err)

		_, err = m.UpdateStatus(ctx, alice, created.ID, types.OrderStatusCompleted)
		assert.True(t, errdefs.IsPermissionDenied(err))
	})

	t.Run("permissive accepts backwards", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
		require.NoError(t, err)

		_, err = m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusCompleted)
		require.NoError(t, err)
		updated, err := m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusPending)
		require.NoError(t, err)
		assert.Equal(t, types.OrderStatusPending, updated.Status)
	})

	t.Run("strict rejects backwards", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{Strict: true})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
		require.NoError(t, err)

		_, err = m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusCompleted)
		assert.True(t, errdefs.IsInvalidArgument(err))
	})

	t.Run("to cancelled restores stock", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 2)))
		require.NoError(t, err)

		updated, err := m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, types.OrderStatusCancelled, updated.Status)
		assert.Equal(t, 3, stockOf(t, store, "p1"))

		_, err = m.UpdateStatus(ctx, admin, created.ID, types.OrderStatusPending)
		assert.True(t, errdefs.IsInvalidArgument(err), "cancelled is final")
	})

	t.Run("unknown status", func(t *testing.T) {
		m, store := newTestManager(t, lifecycle.Machine{})
		addProduct(t, store, "p1", "1.00", 3)
		created, err := m.CreateOrder(ctx, alice, request(item("p1", 1)))
		require.NoError(t, err)

		_, err = m.UpdateStatus(ctx, admin, created.ID, types.OrderStatus("shipped"))
		assert.True(t, errdefs.IsInvalidArgument(err))
	})
}
