/*
Package metrics defines the storefront's Prometheus collectors and its
component health registry.

Every collector is registered with the default Prometheus registry at init
and exposed by Handler, which `storefront serve` mounts at /metrics.

# Collectors

State gauges, refreshed by the metrics job (see pkg/jobs):

	storefront_users_total{role, active}
	storefront_products_total
	storefront_stock_units                 sum of stock across products
	storefront_orders_total{status}
	storefront_revoked_tokens

Counters and histograms, updated as requests are served:

	storefront_actions_total{action, result}      result is "success" or "error"
	storefront_action_duration_seconds{action}
	storefront_logins_total{result}
	storefront_inventory_transactions_total{kind, result}
	storefront_stock_rejections_total
	storefront_storage_tx_duration_seconds{kind}  kind is "view" or "update"
	storefront_storage_errors_total{kind}
	storefront_snapshots_total{result}

Timing follows the usual pattern:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ActionDuration, "create_order")

# Health registry

Components report their state with RegisterComponent, UpdateComponent or
ReportError. GetHealth folds every registered component into one status;
GetReadiness only looks at the critical components (storage and api by
default, see SetCriticalComponents). pkg/api serves both as JSON.
*/
package metrics
