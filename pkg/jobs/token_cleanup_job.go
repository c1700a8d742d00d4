package jobs

import (
	"context"

	"github.com/cuemby/storefront/pkg/log"
)

// Cleaner drops expired revocations
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// TokenCleanupJob removes revoked tokens that have expired anyway
type TokenCleanupJob struct {
	revocations Cleaner
}

// NewTokenCleanupJob creates a new token cleanup job
func NewTokenCleanupJob(revocations Cleaner) *TokenCleanupJob {
	return &TokenCleanupJob{revocations: revocations}
}

// Run removes expired revocations
func (j *TokenCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	logger := log.WithComponent("jobs")
	removed, err := j.revocations.CleanupExpired(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Token cleanup failed")
		return
	}
	if removed > 0 {
		logger.Debug().Int("removed", removed).Msg("Expired revocations removed")
	}
}
