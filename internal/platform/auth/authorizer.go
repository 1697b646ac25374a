package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emsops/emsops/internal/platform/audit"
)

// ActiveSession is the authorizer's view of a session row: just enough to
// cross-check the token claims and hand identity downstream.
type ActiveSession struct {
	ID          uuid.UUID
	TenantID    string
	PrincipalID uuid.UUID
	CSRFSecret  string
}

// SessionSource is the authoritative, revocable side of authorization. An
// implementation answers "is there an active session behind this jti" from
// persistent storage; FindActive returns (nil, nil) when there is none;
// missing, revoked and expired are indistinguishable to the authorizer.
type SessionSource interface {
	FindActive(ctx context.Context, tokenID string) (*ActiveSession, error)
	Touch(ctx context.Context, sessionID uuid.UUID)
}

// AuthorizedPrincipal is the result of a successful authorization.
type AuthorizedPrincipal struct {
	PrincipalID uuid.UUID
	TenantID    string
	SessionID   uuid.UUID
	Role        string
	CSRFSecret  string
}

// Authorizer is the per-request gate: the stateless token check first, the
// authoritative session lookup second. Both must pass.
type Authorizer struct {
	verifier     *TokenVerifier
	sessions     SessionSource
	recorder     audit.Recorder
	logger       zerolog.Logger
	storeTimeout time.Duration
}

func NewAuthorizer(verifier *TokenVerifier, sessions SessionSource, recorder audit.Recorder, logger zerolog.Logger, storeTimeout time.Duration) *Authorizer {
	if storeTimeout <= 0 {
		storeTimeout = 2 * time.Second
	}
	return &Authorizer{
		verifier:     verifier,
		sessions:     sessions,
		recorder:     recorder,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// Authorize admits or rejects a bearer token. Every failure branch returns
// ErrUnauthenticated so that callers cannot tell an expired token from a
// revoked session from a jti that never existed. The specific cause goes to
// the audit recorder only.
func (a *Authorizer) Authorize(ctx context.Context, tokenString string) (*AuthorizedPrincipal, error) {
	claims, err := a.verifier.Verify(tokenString)
	if err != nil {
		a.recorder.Record(ctx, audit.Event{
			Type:   audit.EventSessionRejected,
			Detail: err.Error(),
		})
		return nil, ErrUnauthenticated
	}

	// The store lookup runs under its own short deadline. A store that
	// cannot confirm the session is treated exactly like a rejection:
	// authorization never defaults to allow.
	lookupCtx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	session, err := a.sessions.FindActive(lookupCtx, claims.ID)
	if err != nil {
		a.logger.Error().Err(err).
			Str("tenant_id", claims.TenantID).
			Msg("session store unavailable during authorization")
		return nil, ErrUnauthenticated
	}
	if session == nil {
		a.recorder.Record(ctx, audit.Event{
			Type:     audit.EventSessionRejected,
			TenantID: claims.TenantID,
			Detail:   "no active session for token",
		})
		return nil, ErrUnauthenticated
	}

	// The claims are signed, so a mismatch here should be unreachable.
	// Checked anyway: the session row is authoritative.
	if session.TenantID != claims.TenantID || session.PrincipalID.String() != claims.Subject {
		a.recorder.Record(ctx, audit.Event{
			Type:      audit.EventSessionRejected,
			TenantID:  claims.TenantID,
			SessionID: session.ID,
			Detail:    "token claims do not match session",
		})
		return nil, ErrUnauthenticated
	}

	// last_seen_at is a monitoring field, not a correctness field: update it
	// off the request path and without the request's cancellation.
	go a.sessions.Touch(context.WithoutCancel(ctx), session.ID)

	return &AuthorizedPrincipal{
		PrincipalID: session.PrincipalID,
		TenantID:    session.TenantID,
		SessionID:   session.ID,
		Role:        claims.Role,
		CSRFSecret:  session.CSRFSecret,
	}, nil
}
