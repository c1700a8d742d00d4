package security

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is the scheme reported with issued tokens
const TokenType = "bearer"

// DefaultTokenTTL matches the 30 minute access token lifetime
const DefaultTokenTTL = 30 * time.Minute

// Claims is the JWT payload of an access token. The subject is the username.
type Claims struct {
	jwt.RegisteredClaims
	Role   types.Role `json:"role"`
	UserID string     `json:"uid"`
}

// DeriveSigningKey derives the 32-byte HMAC key from the configured secret
func DeriveSigningKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret key cannot be empty")
	}
	hash := sha256.Sum256([]byte(secret))
	return hash[:], nil
}

// TokenIssuer issues and verifies HS256 access tokens
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with a key derived from secret
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	key, err := DeriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed token for u
func (i *TokenIssuer) Issue(u *types.User) (*types.Token, *Claims, error) {
	now := i.now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   u.Username,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role:   u.Role,
		UserID: u.ID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &types.Token{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, claims, nil
}

// Verify parses token and checks its signature, issuer and expiry. Every
// failure is reported as unauthorized.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", errdefs.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w: %w", errdefs.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", errdefs.ErrUnauthenticated)
	}
	return claims, nil
}
