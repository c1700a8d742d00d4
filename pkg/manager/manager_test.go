package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/config"
	"github.com/cuemby/storefront/pkg/events"
	"github.com/cuemby/storefront/pkg/security"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "password1"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Auth.SecretKey = "test-secret"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return cfg
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return newTestManagerWith(t, testConfig(t))
}

func newTestManagerWith(t *testing.T, cfg *config.Config) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	m.now = func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
	return m
}

func register(t *testing.T, m *Manager, username string) *types.User {
	t.Helper()
	u, err := m.Register(context.Background(), types.UserDraft{
		Username: username,
		Email:    username + "@example.com",
		FullName: username + " tester",
		Password: testPassword,
	}, "go-test")
	require.NoError(t, err)
	return u
}

func registerAdmin(t *testing.T, m *Manager, username string) types.Principal {
	t.Helper()
	u := register(t, m, username)
	admin, err := m.users.Update(context.Background(), u.ID, storage.PatchFunc[types.User](func(u *types.User) error {
		u.Role = types.RoleAdmin
		return nil
	}))
	require.NoError(t, err)
	return admin.Principal()
}

func addProduct(t *testing.T, m *Manager, name, price string, stock int) *types.Product {
	t.Helper()
	p := &types.Product{
		ID:        m.newID(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Category:  "test",
		CreatedAt: m.now(),
	}
	require.NoError(t, m.products.Create(context.Background(), p))
	return p
}

func TestRegister(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sub := m.GetEventBroker().Subscribe()
	defer m.GetEventBroker().Unsubscribe(sub)

	u, err := m.Register(ctx, types.UserDraft{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: testPassword,
	}, "")
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, types.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "unknown", u.RegisteredFrom)
	assert.NotEqual(t, testPassword, u.PasswordHash)
	assert.False(t, security.IsLegacyHash(u.PasswordHash))

	select {
	case event := <-sub:
		assert.Equal(t, events.EventUserRegistered, event.Type)
		assert.Equal(t, u.ID, event.Subject)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestRegisterRejects(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	register(t, m, "alice")

	tests := []struct {
		name  string
		draft types.UserDraft
		check func(error) bool
	}{
		{"duplicate username", types.UserDraft{Username: "alice", Email: "other@example.com", Password: testPassword}, errdefs.IsAlreadyExists},
		{"duplicate email in other case", types.UserDraft{Username: "alice2", Email: "ALICE@example.com", Password: testPassword}, errdefs.IsAlreadyExists},
		{"short username", types.UserDraft{Username: "al", Email: "al@example.com", Password: testPassword}, errdefs.IsInvalidArgument},
		{"bad email", types.UserDraft{Username: "carol", Email: "not-an-email", Password: testPassword}, errdefs.IsInvalidArgument},
		{"short password", types.UserDraft{Username: "carol", Email: "carol@example.com", Password: "pass1"}, errdefs.IsInvalidArgument},
		{"password without digit", types.UserDraft{Username: "carol", Email: "carol@example.com", Password: "password"}, errdefs.IsInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Register(ctx, tt.draft, "")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error class: %v", err)
		})
	}

	users, err := m.users.All(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterConcurrentDuplicates(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	var succeeded, conflicts atomic.Int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Register(ctx, types.UserDraft{
				Username: "racer",
				Email:    "racer" + string(rune('a'+i)) + "@example.com",
				Password: testPassword,
			}, "")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errdefs.IsAlreadyExists(err):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(attempts-1), conflicts.Load())
}

func TestAuthenticate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	alice := register(t, m, "alice")

	token, err := m.Authenticate(ctx, "alice", testPassword, "curl/8.0")
	require.NoError(t, err)
	assert.Equal(t, security.TokenType, token.TokenType)
	assert.NotEmpty(t, token.AccessToken)

	principal, err := m.Principal(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, principal.ID)
	assert.Equal(t, types.RoleUser, principal.Role)

	stored, err := m.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LoginCount)
	assert.Equal(t, "curl/8.0", stored.LastDevice)
	require.NotNil(t, stored.LastLogin)

	_, err = m.Authenticate(ctx, "alice", "wrong-password1", "")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = m.Authenticate(ctx, "nobody", testPassword, "")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.True(t, errdefs.IsUnauthorized(err))
}

func TestAuthenticateInactive(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	admin := registerAdmin(t, m, "admin")
	alice := register(t, m, "alice")

	_, err := m.DeactivateUser(ctx, admin, alice.ID)
	require.NoError(t, err)

	_, err = m.Authenticate(ctx, "alice", testPassword, "")
	require.Error(t, err)
	assert.True(t, errdefs.IsUnauthorized(err))
}

func TestAuthenticateUpgradesLegacyHash(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	legacy := &types.User{
		ID:           "legacy-admin",
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: security.LegacyHash("admin123"),
		Role:         types.RoleAdmin,
		IsActive:     true,
	}
	require.NoError(t, m.users.Create(ctx, legacy))

	_, err := m.Authenticate(ctx, "admin", "admin123", "")
	require.NoError(t, err)

	stored, err := m.users.Get(ctx, legacy.ID)
	require.NoError(t, err)
	assert.False(t, security.IsLegacyHash(stored.PasswordHash), "hash upgraded to bcrypt")
	assert.True(t, m.hasher.Verify(stored.PasswordHash, "admin123"))

	_, err = m.Authenticate(ctx, "admin", "admin123", "")
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	register(t, m, "alice")

	token, err := m.Authenticate(ctx, "alice", testPassword, "")
	require.NoError(t, err)
	other, err := m.Authenticate(ctx, "alice", testPassword, "")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, token.AccessToken))

	_, err = m.Principal(ctx, token.AccessToken)
	assert.True(t, errdefs.IsUnauthorized(err))
	_, err = m.Principal(ctx, other.AccessToken)
	assert.NoError(t, err, "other sessions stay valid")

	// a fresh manager on the same store still rejects the token
	again, err := New(ctx, m.cfg, m.Store())
	require.NoError(t, err)
	defer again.Shutdown()
	_, err = again.Principal(ctx, token.AccessToken)
	assert.True(t, errdefs.IsUnauthorized(err))

	assert.True(t, errdefs.IsUnauthorized(m.Logout(ctx, token.AccessToken)))
}

func TestRefresh(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	alice := register(t, m, "alice")

	token, err := m.Refresh(ctx, alice.Principal())
	require.NoError(t, err)
	principal, err := m.Principal(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, principal.ID)

	_, err = m.Refresh(ctx, types.Principal{ID: "ghost", Username: "ghost", IsActive: true})
	assert.True(t, errdefs.IsUnauthorized(err))
}

func TestPrincipalInvalidToken(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Principal(context.Background(), "not-a-token")
	assert.True(t, errdefs.IsUnauthorized(err))

	_, err = m.Principal(context.Background(), "")
	assert.True(t, errdefs.IsUnauthorized(err))
}
