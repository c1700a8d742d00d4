package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Entity metrics
	UsersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_users_total",
			Help: "Total number of users by role and active flag",
		},
		[]string{"role", "active"},
	)

	ProductsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_products_total",
			Help: "Total number of products",
		},
	)

	StockUnits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_stock_units",
			Help: "Sum of stock over all products",
		},
	)

	OrdersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_orders_total",
			Help: "Total number of orders by status",
		},
		[]string{"status"},
	)

	// Action metrics
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_actions_total",
			Help: "Total number of actions by name and result",
		},
		[]string{"action", "result"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_action_duration_seconds",
			Help:    "Action duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Inventory metrics
	InventoryTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_inventory_transactions_total",
			Help: "Inventory transactions by kind (create, cancel) and result",
		},
		[]string{"kind", "result"},
	)

	StockRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_stock_rejections_total",
			Help: "Order creations rejected for insufficient stock",
		},
	)

	// Storage metrics
	StorageTxDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_storage_tx_duration_seconds",
			Help:    "Storage transaction duration in seconds by kind (view, update)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_storage_errors_total",
			Help: "Storage transactions that failed in the storage layer",
		},
		[]string{"kind"},
	)

	// Auth metrics
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	RevokedTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_revoked_tokens",
			Help: "Revoked tokens not yet expired",
		},
	)

	// Job metrics
	SnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_snapshots_total",
			Help: "Collection snapshots written by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(UsersTotal)
	prometheus.MustRegister(ProductsTotal)
	prometheus.MustRegister(StockUnits)
	prometheus.MustRegister(OrdersTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(InventoryTransactions)
	prometheus.MustRegister(StockRejections)
	prometheus.MustRegister(StorageTxDuration)
	prometheus.MustRegister(StorageErrors)
	prometheus.MustRegister(LoginsTotal)
	prometheus.MustRegister(RevokedTokens)
	prometheus.MustRegister(SnapshotsTotal)
}

// Result returns the label value used for a call outcome
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
