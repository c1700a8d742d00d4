package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/storefront/pkg/config"
	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// runTimeout bounds a single job run
const runTimeout = time.Minute

// Scheduler runs the background jobs on their cron schedules
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	jobs   map[string]cron.EntryID
}

// NewScheduler registers every job with a non-empty schedule. Relative
// snapshot directories are resolved against dataDir.
func NewScheduler(cfg config.JobsConfig, dataDir string, mgr *manager.Manager) (*Scheduler, error) {
	logger := log.WithComponent("jobs")
	cl := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(config.ScheduleParser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}

	snapshotDir := cfg.SnapshotDir
	if snapshotDir != "" && !filepath.IsAbs(snapshotDir) {
		snapshotDir = filepath.Join(dataDir, snapshotDir)
	}

	entries := []struct {
		name     string
		schedule string
		job      cron.Job
	}{
		{"metrics", cfg.MetricsSchedule, NewMetricsJob(manager.NewMetricsCollector(mgr))},
		{"token_cleanup", cfg.TokenCleanupSchedule, NewTokenCleanupJob(mgr.Revocations())},
		{"snapshot", cfg.SnapshotSchedule, NewSnapshotJob(mgr.Store(), snapshotDir, cfg.SnapshotCompress)},
	}
	for _, e := range entries {
		if e.schedule == "" {
			continue
		}
		id, err := s.cron.AddJob(e.schedule, e.job)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s job: %w", e.name, err)
		}
		s.jobs[e.name] = id
		logger.Info().Str("job", e.name).Str("schedule", e.schedule).Msg("Job scheduled")
	}
	return s, nil
}

// Jobs returns the names of the scheduled jobs
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	metrics.RegisterComponent(metrics.ComponentJobs, true, "scheduler running")
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
