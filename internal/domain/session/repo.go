package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateTokenID is returned by Create when the token_id collides with
// an existing row. The service retries with a fresh jti; the uniqueness
// constraint is what makes the jti → session join unambiguous.
var ErrDuplicateTokenID = errors.New("session: duplicate token id")

// Repository is the session store. All reads and writes that act on a
// single session are scoped so that a row can never be observed or mutated
// from outside its tenant, except FindActiveByTokenID: at authorization
// time the tenant is not yet known, the jti alone identifies the row and
// the caller cross-checks the tenant against the token claims afterwards.
//
// Revocation methods must be conditional on revoked_at IS NULL so that
// concurrent revocations settle on exactly one winner and a revoked session
// can never transition back to active.
type Repository interface {
	// Create inserts the session. Returns ErrDuplicateTokenID on a
	// token_id collision.
	Create(ctx context.Context, s *Session) error

	// FindActiveByTokenID returns the session for the jti only if it is
	// active at now. Missing, revoked and expired all return (nil, nil).
	FindActiveByTokenID(ctx context.Context, tokenID string, now time.Time) (*Session, error)

	// GetByID returns the session row regardless of its state, or
	// (nil, nil) when no row matches within the tenant.
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Session, error)

	// Touch updates last_seen_at on an active session. A no-op on
	// revoked or missing rows.
	Touch(ctx context.Context, id uuid.UUID, now time.Time) error

	// Revoke marks the session revoked if it is not already. Returns
	// true when this call performed the transition.
	Revoke(ctx context.Context, tenantID string, id uuid.UUID, reason string, now time.Time) (bool, error)

	// RevokeAllForPrincipal revokes every unrevoked session of the
	// principal and returns how many rows this call transitioned.
	RevokeAllForPrincipal(ctx context.Context, tenantID string, principalID uuid.UUID, reason string, now time.Time) (int64, error)

	// ListByPrincipal returns the principal's sessions, newest first.
	ListByPrincipal(ctx context.Context, tenantID string, principalID uuid.UUID, limit, offset int) ([]*Session, int, error)

	// DeleteExpiredBefore removes rows whose expiry is older than the
	// cutoff, revoked or not, and returns how many were deleted.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
