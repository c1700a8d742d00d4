package manager

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/events"
	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
)

// ErrBadCredentials is returned by Authenticate for an unknown username or a
// wrong password
var ErrBadCredentials = fmt.Errorf("incorrect username or password: %w", errdefs.ErrUnauthenticated)

const unknownDevice = "unknown"

// Register creates an active user with the user role. registeredFrom records
// the client that registered, usually its user agent.
func (m *Manager) Register(ctx context.Context, draft types.UserDraft, registeredFrom string) (user *types.User, err error) {
	defer observe("register", metrics.NewTimer(), &err)

	user, err = m.createUser(ctx, draft, types.RoleUser, registeredFrom)
	if err != nil {
		return nil, err
	}

	m.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	m.PublishEvent(&events.Event{
		Type:     events.EventUserRegistered,
		Actor:    user.Username,
		Subject:  user.ID,
		Message:  "User registered",
		Metadata: map[string]string{"username": user.Username, "email": user.Email},
	})
	return user, nil
}

func (m *Manager) createUser(ctx context.Context, draft types.UserDraft, role types.Role, registeredFrom string) (*types.User, error) {
	if err := draft.Validate(m.cfg.Auth.PasswordRules()); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(draft.Password)
	if err != nil {
		return nil, err
	}
	if registeredFrom == "" {
		registeredFrom = unknownDevice
	}

	user := &types.User{
		ID:             m.newID(),
		Username:       draft.Username,
		Email:          types.NormalizeEmail(draft.Email),
		FullName:       draft.FullName,
		PasswordHash:   hash,
		Role:           role,
		IsActive:       true,
		RegisteredFrom: registeredFrom,
		CreatedAt:      m.now().UTC(),
	}

	err = m.store.Update(ctx, func(tx *storage.Tx) error {
		if err := checkUnique(tx, "", "username", user.Username); err != nil {
			return err
		}
		if err := checkUnique(tx, "", "email", user.Email); err != nil {
			return err
		}
		return storage.Users.Create(tx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// checkUnique fails with AlreadyExists when a user other than selfID holds
// value in field
func checkUnique(tx *storage.Tx, selfID, field, value string) error {
	existing, err := storage.Users.Find(tx, field, value)
	if errdefs.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return fmt.Errorf("%s %q is already registered: %w", field, value, errdefs.ErrAlreadyExists)
}

// Authenticate checks a username and password and issues an access token.
// A successful login increments the login count, records the device and
// upgrades a legacy password hash to bcrypt.
func (m *Manager) Authenticate(ctx context.Context, username, password, device string) (token *types.Token, err error) {
	defer observe("login", metrics.NewTimer(), &err)
	defer func() {
		metrics.LoginsTotal.WithLabelValues(metrics.Result(err)).Inc()
	}()

	user, err := m.users.Find(ctx, "username", username)
	if errdefs.IsNotFound(err) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !m.hasher.Verify(user.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account %q is inactive: %w", username, errdefs.ErrUnauthenticated)
	}

	verified := user.PasswordHash
	var rehashed string
	if m.hasher.NeedsRehash(verified) {
		hash, hashErr := m.hasher.Hash(password)
		if hashErr != nil {
			m.logger.Warn().Err(hashErr).Str("user_id", user.ID).Msg("Failed to upgrade password hash")
		} else {
			rehashed = hash
		}
	}
	if device == "" {
		device = unknownDevice
	}

	now := m.now().UTC()
	user, err = m.users.Update(ctx, user.ID, storage.PatchFunc[types.User](func(u *types.User) error {
		if !u.IsActive {
			return fmt.Errorf("account %q is inactive: %w", username, errdefs.ErrUnauthenticated)
		}
		// skip the upgrade if the password changed since it was verified
		if rehashed != "" && u.PasswordHash == verified {
			u.PasswordHash = rehashed
		}
		u.LoginCount++
		u.LastLogin = &now
		u.LastDevice = device
		return nil
	}))
	if err != nil {
		return nil, err
	}

	token, _, err = m.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	userLog := log.WithUserID(m.logger, user.ID)
	userLog.Info().Int("login_count", user.LoginCount).Msg("User logged in")
	m.PublishEvent(&events.Event{
		Type:     events.EventUserLogin,
		Actor:    user.Username,
		Subject:  user.ID,
		Message:  "User logged in",
		Metadata: map[string]string{"device": device},
	})
	return token, nil
}

// Refresh issues a new token for an authenticated principal
func (m *Manager) Refresh(ctx context.Context, principal types.Principal) (token *types.Token, err error) {
	defer observe("refresh", metrics.NewTimer(), &err)

	user, err := m.users.Get(ctx, principal.ID)
	if errdefs.IsNotFound(err) {
		return nil, fmt.Errorf("user %q no longer exists: %w", principal.Username, errdefs.ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account %q is inactive: %w", user.Username, errdefs.ErrPermissionDenied)
	}

	token, _, err = m.issuer.Issue(user)
	return token, err
}

// Logout revokes token until it expires
func (m *Manager) Logout(ctx context.Context, token string) (err error) {
	defer observe("logout", metrics.NewTimer(), &err)

	principal, claims, err := m.resolver.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return fmt.Errorf("token has no id and cannot be revoked: %w", errdefs.ErrInvalidArgument)
	}
	if err := m.revocations.Revoke(ctx, claims.ID, claims.Subject, claims.ExpiresAt.Time); err != nil {
		return err
	}

	userLog := log.WithUserID(m.logger, principal.ID)
	userLog.Info().Msg("User logged out")
	m.PublishEvent(&events.Event{
		Type:    events.EventUserLogout,
		Actor:   principal.Username,
		Subject: principal.ID,
		Message: "User logged out",
	})
	return nil
}

// Principal resolves a bearer token to the acting principal
func (m *Manager) Principal(ctx context.Context, token string) (types.Principal, error) {
	principal, _, err := m.resolver.Resolve(ctx, token)
	return principal, err
}
