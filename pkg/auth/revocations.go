package auth

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
)

// Revocations tracks logged-out token ids until their expiry. Entries are
// cached in memory and persisted in the revocations collection so that a
// logout survives a restart.
type Revocations struct {
	store   storage.Store
	revoked map[string]time.Time
	mu      sync.RWMutex
	now     func() time.Time
}

// NewRevocations creates a revocation list backed by store. A nil store keeps
// the list in memory only.
func NewRevocations(store storage.Store) *Revocations {
	return &Revocations{
		store:   store,
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Load replaces the in-memory cache with the persisted entries
func (r *Revocations) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	var entries []*types.Revocation
	err := r.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		entries, err = storage.Revocations.All(tx)
		return err
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = make(map[string]time.Time, len(entries))
	for _, e := range entries {
		r.revoked[e.ID] = e.ExpiresAt
	}
	metrics.RevokedTokens.Set(float64(len(r.revoked)))
	return nil
}

// Revoke marks the token id as logged out until expiresAt
func (r *Revocations) Revoke(ctx context.Context, id, username string, expiresAt time.Time) error {
	if r.store != nil {
		entry := &types.Revocation{
			ID:        id,
			Username:  username,
			ExpiresAt: expiresAt,
			RevokedAt: r.now().UTC(),
		}
		err := r.store.Update(ctx, func(tx *storage.Tx) error {
			exists, err := storage.Revocations.Exists(tx, id)
			if err != nil || exists {
				return err
			}
			return storage.Revocations.Create(tx, entry)
		})
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.revoked[id] = expiresAt
	n := len(r.revoked)
	r.mu.Unlock()

	metrics.RevokedTokens.Set(float64(n))
	return nil
}

// IsRevoked reports whether the token id has been logged out
func (r *Revocations) IsRevoked(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, revoked := r.revoked[id]
	return revoked
}

// CleanupExpired drops entries whose token has expired anyway and returns how
// many were removed
func (r *Revocations) CleanupExpired(ctx context.Context) (int, error) {
	now := r.now()

	if r.store != nil {
		err := r.store.Update(ctx, func(tx *storage.Tx) error {
			expired, err := storage.Revocations.Filter(tx, func(e *types.Revocation) bool {
				return now.After(e.ExpiresAt)
			})
			if err != nil {
				return err
			}
			for _, e := range expired {
				if _, err := storage.Revocations.Delete(tx, e.ID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, expiresAt := range r.revoked {
		if now.After(expiresAt) {
			delete(r.revoked, id)
			removed++
		}
	}
	metrics.RevokedTokens.Set(float64(len(r.revoked)))
	return removed, nil
}

// Len returns the number of tracked revocations
func (r *Revocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}
