package jobs

import (
	"context"

	"github.com/cuemby/storefront/pkg/log"
)

// Collector refreshes metrics from the store
type Collector interface {
	Collect(ctx context.Context) error
}

// MetricsJob refreshes the entity gauges
type MetricsJob struct {
	collector Collector
}

// NewMetricsJob creates a new metrics job
func NewMetricsJob(collector Collector) *MetricsJob {
	return &MetricsJob{collector: collector}
}

// Run collects the metrics once
func (j *MetricsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := j.collector.Collect(ctx); err != nil {
		logger := log.WithComponent("jobs")
		logger.Warn().Err(err).Msg("Metrics collection failed")
	}
}
