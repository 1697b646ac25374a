package auth

import "errors"

// Credential-stage failures. All three collapse to the same generic 401 at
// the HTTP boundary; the distinction exists only for audit records.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPrincipalDisabled  = errors.New("principal disabled")
	ErrPrincipalNotFound  = errors.New("principal not found")
)

// Token verification failures. Internal only; never exposed distinctly to
// the caller.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// ErrUnauthenticated is the single failure every authorization branch
// collapses to. Handlers map it to a uniform 401 so that response shape
// cannot distinguish an expired token from a revoked session from an
// unknown jti.
var ErrUnauthenticated = errors.New("unauthenticated")
