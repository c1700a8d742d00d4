package auth

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/security"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
)

// Verifier checks a bearer token and returns its claims
type Verifier interface {
	Verify(token string) (*security.Claims, error)
}

// Resolver turns a bearer token into the acting Principal
type Resolver struct {
	store       storage.Store
	verifier    Verifier
	revocations *Revocations
}

// NewResolver creates a resolver. revocations may be nil.
func NewResolver(store storage.Store, verifier Verifier, revocations *Revocations) *Resolver {
	return &Resolver{
		store:       store,
		verifier:    verifier,
		revocations: revocations,
	}
}

// Resolve verifies token and loads the user it names. The role and active
// flag come from the stored user, not from the token.
//
// Errors: unauthorized for a bad, expired or revoked token, for an unknown
// user or one whose id no longer matches the token; permission denied for an
// inactive user.
func (r *Resolver) Resolve(ctx context.Context, token string) (types.Principal, *security.Claims, error) {
	claims, err := r.verifier.Verify(token)
	if err != nil {
		return types.Principal{}, nil, err
	}
	if claims.Subject == "" {
		return types.Principal{}, nil, fmt.Errorf("token has no subject: %w", errdefs.ErrUnauthenticated)
	}
	if r.revocations != nil && claims.ID != "" && r.revocations.IsRevoked(claims.ID) {
		return types.Principal{}, nil, fmt.Errorf("token has been revoked: %w", errdefs.ErrUnauthenticated)
	}

	var user *types.User
	err = r.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		user, err = storage.Users.Find(tx, "username", claims.Subject)
		return err
	})
	if errdefs.IsNotFound(err) {
		return types.Principal{}, nil, fmt.Errorf("user %q no longer exists: %w", claims.Subject, errdefs.ErrUnauthenticated)
	}
	if err != nil {
		return types.Principal{}, nil, err
	}

	// a recreated account with the same username must not inherit old tokens
	if claims.UserID != "" && claims.UserID != user.ID {
		return types.Principal{}, nil, fmt.Errorf("token does not belong to user %q: %w", claims.Subject, errdefs.ErrUnauthenticated)
	}
	if !user.IsActive {
		return types.Principal{}, nil, fmt.Errorf("user %q is inactive: %w", user.Username, errdefs.ErrPermissionDenied)
	}

	return user.Principal(), claims, nil
}
