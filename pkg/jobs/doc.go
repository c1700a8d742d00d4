/*
Package jobs runs storefront's background work on cron schedules.

	metrics        MetricsJob       refresh entity gauges from the store
	token_cleanup  TokenCleanupJob  drop revocations whose token has expired
	snapshot       SnapshotJob      write a snapshot directory of every collection

Schedules come from config.JobsConfig and accept five or six cron fields or a
descriptor such as "@every 30s". An empty schedule disables the job. Runs of
the same job never overlap, and a panicking job is logged and recovered.
*/
package jobs
