/*
Package security provides password hashing and access token signing.

# Passwords

PasswordHasher stores passwords as bcrypt hashes (cost 12 by default).
Databases written by older deployments contain unsalted SHA-256 hex digests;
Verify still accepts those, and NeedsRehash reports them so the caller can
replace the digest with a bcrypt hash on the next successful login:

	hasher, _ := security.NewPasswordHasher(0)
	if hasher.Verify(user.PasswordHash, password) && hasher.NeedsRehash(user.PasswordHash) {
		user.PasswordHash, _ = hasher.Hash(password)
	}

# Tokens

TokenIssuer signs HS256 JWTs. The HMAC key is the SHA-256 of the configured
secret, so any secret length yields a 32-byte key. Claims carry:

  - sub: username
  - uid: user id, checked against the stored user on every request
  - role: role at issue time (informational; the stored role is authoritative)
  - jti: token id, used for revocation on logout
  - iat, exp: issue and expiry time

Verify rejects tokens with a different algorithm, issuer, a bad signature or
a past expiry. All of these map to errdefs.ErrUnauthenticated.
*/
package security
