package jobs

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/storage"
)

// snapshotLayout names each snapshot directory after its UTC start time
const snapshotLayout = "20060102T150405Z"

// SnapshotJob writes a snapshot of every collection to a new directory under dir
type SnapshotJob struct {
	store    storage.Store
	dir      string
	compress bool
	now      func() time.Time
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(store storage.Store, dir string, compress bool) *SnapshotJob {
	return &SnapshotJob{
		store:    store,
		dir:      dir,
		compress: compress,
		now:      time.Now,
	}
}

// Run writes one snapshot
func (j *SnapshotJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if _, err := j.snapshot(ctx); err != nil {
		logger := log.WithComponent("jobs")
		logger.Error().Err(err).Msg("Snapshot failed")
	}
}

func (j *SnapshotJob) snapshot(ctx context.Context) (string, error) {
	target := filepath.Join(j.dir, j.now().UTC().Format(snapshotLayout))

	files, err := storage.WriteSnapshot(ctx, j.store, target, j.compress)
	metrics.SnapshotsTotal.WithLabelValues(metrics.Result(err)).Inc()
	metrics.ReportError(metrics.ComponentJobs, err)
	if err != nil {
		return "", err
	}

	logger := log.WithComponent("jobs")
	logger.Info().Str("dir", target).Int("files", len(files)).Msg("Snapshot written")
	return target, nil
}
