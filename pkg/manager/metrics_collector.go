package manager

import (
	"context"
	"strconv"

	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
)

// MetricsCollector refreshes the entity gauges from the store
type MetricsCollector struct {
	manager *Manager
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{manager: mgr}
}

// Collect reads every collection in one transaction and updates the gauges
func (c *MetricsCollector) Collect(ctx context.Context) error {
	var (
		users    []*types.User
		products []*types.Product
		orders   []*types.Order
	)
	err := c.manager.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		if users, err = storage.Users.All(tx); err != nil {
			return err
		}
		if products, err = storage.Products.All(tx); err != nil {
			return err
		}
		orders, err = storage.Orders.All(tx)
		return err
	})
	if err != nil {
		return err
	}

	c.collectUserMetrics(users)
	c.collectProductMetrics(products)
	c.collectOrderMetrics(orders)
	metrics.RevokedTokens.Set(float64(c.manager.revocations.Len()))
	return nil
}

func (c *MetricsCollector) collectUserMetrics(users []*types.User) {
	userCounts := make(map[types.Role]map[bool]int)
	for _, role := range []types.Role{types.RoleAdmin, types.RoleUser} {
		userCounts[role] = map[bool]int{true: 0, false: 0}
	}

	for _, u := range users {
		if userCounts[u.Role] == nil {
			userCounts[u.Role] = make(map[bool]int)
		}
		userCounts[u.Role][u.IsActive]++
	}

	metrics.UsersTotal.Reset()
	for role, flags := range userCounts {
		for active, count := range flags {
			metrics.UsersTotal.WithLabelValues(string(role), strconv.FormatBool(active)).Set(float64(count))
		}
	}
}

func (c *MetricsCollector) collectProductMetrics(products []*types.Product) {
	units := 0
	for _, p := range products {
		units += p.Stock
	}
	metrics.ProductsTotal.Set(float64(len(products)))
	metrics.StockUnits.Set(float64(units))
}

func (c *MetricsCollector) collectOrderMetrics(orders []*types.Order) {
	orderCounts := make(map[types.OrderStatus]int, len(types.OrderStatuses))
	for _, status := range types.OrderStatuses {
		orderCounts[status] = 0
	}
	for _, o := range orders {
		orderCounts[o.Status]++
	}

	for status, count := range orderCounts {
		metrics.OrdersTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}
