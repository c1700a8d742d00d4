package security

import (
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	i, err := NewTokenIssuer("test-secret", "storefront", time.Minute)
	require.NoError(t, err)
	return i
}

var testUser = &types.User{ID: "u-1", Username: "alice", Role: types.RoleUser, IsActive: true}

func TestDeriveSigningKey(t *testing.T) {
	key, err := DeriveSigningKey("secret")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	again, err := DeriveSigningKey("secret")
	require.NoError(t, err)
	assert.Equal(t, key, again)

	_, err = DeriveSigningKey("")
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	i := newTestIssuer(t)

	token, issued, err := i.Issue(testUser)
	require.NoError(t, err)
	assert.Equal(t, TokenType, token.TokenType)
	assert.NotEmpty(t, token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Minute), token.ExpiresAt, 5*time.Second)

	claims, err := i.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, types.RoleUser, claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenIDsAreUnique(t *testing.T) {
	i := newTestIssuer(t)

	_, first, err := i.Issue(testUser)
	require.NoError(t, err)
	_, second, err := i.Issue(testUser)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestVerifyRejects(t *testing.T) {
	i := newTestIssuer(t)
	token, _, err := i.Issue(testUser)
	require.NoError(t, err)

	otherKey, err := NewTokenIssuer("other-secret", "storefront", time.Minute)
	require.NoError(t, err)
	otherIssuer, err := NewTokenIssuer("test-secret", "someone-else", time.Minute)
	require.NoError(t, err)

	expired := newTestIssuer(t)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, _, err := expired.Issue(testUser)
	require.NoError(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "storefront",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	noSubjectToken, err := noSubject.SignedString(i.key)
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront", Subject: "alice"},
	})
	noExpiryToken, err := noExpiry.SignedString(i.key)
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *TokenIssuer
		token    string
	}{
		{"empty", i, ""},
		{"garbage", i, "not.a.jwt"},
		{"wrong key", otherKey, token.AccessToken},
		{"wrong issuer", otherIssuer, token.AccessToken},
		{"expired", i, expiredToken.AccessToken},
		{"no subject", i, noSubjectToken},
		{"no expiry", i, noExpiryToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, errdefs.IsUnauthorized(err))
		})
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	i := newTestIssuer(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "storefront",
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: types.RoleAdmin,
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = i.Verify(token)
	assert.True(t, errdefs.IsUnauthorized(err))
}
