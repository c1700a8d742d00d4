package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Observer) {
	histogram.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed seconds on a labelled histogram
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
