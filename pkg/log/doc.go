/*
Package log provides structured logging for storefront using zerolog.

A single global Logger is configured once by Init from the loaded
configuration; packages derive child loggers that carry identifying fields:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("inventory")
	logger.Info().
		Str("order_id", order.ID).
		Int("items", len(order.Items)).
		Msg("Order created")

Console output (human readable, RFC3339 timestamps) is the default; JSON output
is meant for log shippers. Logs go to stderr so that CLI commands can print
their JSON results on stdout.

Field conventions:

  - component: the emitting package ("manager", "inventory", "jobs", ...)
  - user_id: acting or target user
  - order_id: order being created, cancelled or updated

Passwords, password hashes and bearer tokens are never logged.
*/
package log
