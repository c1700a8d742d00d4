/*
Package api serves the storefront's HTTP operational endpoints.

The storefront's business operations are reached through the CLI and the
manager package. This package exposes only what an orchestrator or a
Prometheus server needs to watch a running `storefront serve` process:

	GET /health   overall status built from the component registry in pkg/metrics
	GET /ready    200 once the store answers a read transaction and every
	              critical component (storage, api) is healthy, 503 otherwise
	GET /live     200 while the process is running
	GET /metrics  Prometheus exposition of the storefront collectors

# Usage

	hs := api.NewHealthServer(mgr)
	go func() {
		if err := hs.Start(":9090"); err != nil {
			logger.Error().Err(err).Msg("health server failed")
		}
	}()
	defer hs.Shutdown(ctx)

Start returns nil after Shutdown. A nil manager is accepted, in which case
/ready always reports the storage as not initialized.

Responses are JSON:

	{"status":"ready","timestamp":"2024-06-01T03:00:00Z","checks":{"api":"ready","storage":"ok"}}
*/
package api
