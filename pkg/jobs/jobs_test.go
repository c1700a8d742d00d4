package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cuemby/storefront/pkg/config"
	"github.com/cuemby/storefront/pkg/manager"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager(t *testing.T) (*manager.Manager, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Auth.BcryptCost = bcrypt.MinCost

	m, err := manager.NewManager(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })
	return m, cfg
}

func TestNewScheduler(t *testing.T) {
	m, cfg := newTestManager(t)

	cfg.Jobs.SnapshotSchedule = "0 3 * * *"
	s, err := NewScheduler(cfg.Jobs, cfg.DataDir, m)
	require.NoError(t, err)

	names := s.Jobs()
	sort.Strings(names)
	assert.Equal(t, []string{"metrics", "snapshot", "token_cleanup"}, names)

	s.Start()
	require.NoError(t, s.Stop(context.Background()))
}

func TestNewSchedulerSkipsEmptySchedules(t *testing.T) {
	m, cfg := newTestManager(t)

	cfg.Jobs.MetricsSchedule = ""
	cfg.Jobs.TokenCleanupSchedule = ""
	s, err := NewScheduler(cfg.Jobs, cfg.DataDir, m)
	require.NoError(t, err)
	assert.Empty(t, s.Jobs())
}

func TestNewSchedulerBadSchedule(t *testing.T) {
	m, cfg := newTestManager(t)

	cfg.Jobs.MetricsSchedule = "whenever"
	_, err := NewScheduler(cfg.Jobs, cfg.DataDir, m)
	assert.Error(t, err)
}

func TestSchedulerRunsJobs(t *testing.T) {
	m, cfg := newTestManager(t)
	_, err := m.Register(context.Background(), types.UserDraft{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	}, "")
	require.NoError(t, err)

	cfg.Jobs.MetricsSchedule = "@every 1s"
	cfg.Jobs.TokenCleanupSchedule = ""
	s, err := NewScheduler(cfg.Jobs, cfg.DataDir, m)
	require.NoError(t, err)
	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.UsersTotal.WithLabelValues(string(types.RoleUser), "true")) == 1
	}, 3*time.Second, 50*time.Millisecond)
}

type fakeCollector struct {
	calls int
	err   error
}

func (f *fakeCollector) Collect(ctx context.Context) error {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	return f.err
}

func TestMetricsJob(t *testing.T) {
	collector := &fakeCollector{}
	NewMetricsJob(collector).Run()
	assert.Equal(t, 1, collector.calls)

	collector.err = errors.New("store closed")
	assert.NotPanics(t, NewMetricsJob(collector).Run)
	assert.Equal(t, 2, collector.calls)
}

func TestTokenCleanupJob(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	revocations := m.Revocations()

	require.NoError(t, revocations.Revoke(ctx, "expired", "alice", time.Now().Add(-time.Minute)))
	require.NoError(t, revocations.Revoke(ctx, "live", "alice", time.Now().Add(time.Hour)))

	NewTokenCleanupJob(revocations).Run()

	assert.False(t, revocations.IsRevoked("expired"))
	assert.True(t, revocations.IsRevoked("live"))
}

func TestSnapshotJob(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.Register(ctx, types.UserDraft{Username: "alice", Email: "alice@example.com", Password: "password1"}, "")
	require.NoError(t, err)

	dir := t.TempDir()
	job := NewSnapshotJob(m.Store(), dir, true)
	job.now = func() time.Time { return time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC) }

	before := testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("success"))
	target, err := job.snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20240601T030000Z"), target)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("success")))

	for _, name := range storage.DefaultCollections {
		_, err := os.Stat(filepath.Join(target, storage.SnapshotFile(name, true)))
		assert.NoError(t, err, name)
	}

	records, err := storage.ReadSnapshot(target, storage.UsersCollection)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0]["username"])
}

func TestSnapshotJobRunReportsFailure(t *testing.T) {
	m, _ := newTestManager(t)

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	before := testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("error"))
	assert.NotPanics(t, NewSnapshotJob(m.Store(), blocker, false).Run)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("error")))
	assert.Contains(t, metrics.GetHealth().Components[metrics.ComponentJobs], "unhealthy")
}
