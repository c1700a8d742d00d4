// Package auth resolves bearer tokens into principals and tracks logged-out
// tokens.
//
// Resolver verifies a token through a Verifier (normally a
// security.TokenIssuer), rejects revoked token ids and then loads the named
// user from storage. The stored user decides role and active state, so a
// demotion or deactivation takes effect on the next request even while an
// older token is still unexpired.
package auth
