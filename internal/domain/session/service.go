package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emsops/emsops/internal/platform/audit"
	"github.com/emsops/emsops/internal/platform/auth"
)

// createAttempts bounds the jti-collision retry loop in Create. Collisions
// on 128-bit random ids are vanishingly rare; more than a couple in a row
// means the random source is broken and the login must fail.
const createAttempts = 3

// ErrNotFound is returned by the self-service revoke when the session does
// not exist, belongs to another principal or sits in another tenant. The
// three cases are deliberately one error.
var ErrNotFound = errors.New("session: not found")

// Service owns the session lifecycle: creation at login, the per-request
// active lookup, revocation in all its variants, and retention sweeping.
type Service struct {
	repo     Repository
	issuer   *auth.TokenIssuer
	recorder audit.Recorder
	logger   zerolog.Logger
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(repo Repository, issuer *auth.TokenIssuer, recorder audit.Recorder, logger zerolog.Logger, tokenTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		issuer:   issuer,
		recorder: recorder,
		logger:   logger,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// WithClock substitutes the clock. For tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Created is the result of a successful login: the persisted session and
// the signed token whose jti points at it.
type Created struct {
	Session *Session
	Token   string
}

// Create persists a new session for the verified principal and issues the
// matching token. The jti and CSRF secret are fresh random values; a jti
// collision on insert is retried with a new jti rather than surfaced.
func (s *Service) Create(ctx context.Context, principal *auth.PrincipalRecord, meta ClientMeta) (*Created, error) {
	now := s.now().UTC()

	for attempt := 0; attempt < createAttempts; attempt++ {
		tokenID, err := randomHex(16)
		if err != nil {
			return nil, fmt.Errorf("generate token id: %w", err)
		}
		csrfSecret, err := randomHex(32)
		if err != nil {
			return nil, fmt.Errorf("generate csrf secret: %w", err)
		}

		sess := &Session{
			ID:          uuid.New(),
			TenantID:    principal.TenantID,
			PrincipalID: principal.ID,
			TokenID:     tokenID,
			CSRFSecret:  csrfSecret,
			IssuedAt:    now,
			ExpiresAt:   now.Add(s.tokenTTL),
			LastSeenAt:  now,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
		}

		err = s.repo.Create(ctx, sess)
		if errors.Is(err, ErrDuplicateTokenID) {
			s.logger.Warn().Int("attempt", attempt+1).Msg("session token id collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}

		token, err := s.issuer.Issue(principal.ID, principal.TenantID, principal.Role, tokenID, s.tokenTTL)
		if err != nil {
			// The row exists but no token references it; revoke it
			// rather than leave an orphan the sweeper has to age out.
			if _, rerr := s.repo.Revoke(ctx, sess.TenantID, sess.ID, ReasonLogout, s.now().UTC()); rerr != nil {
				s.logger.Error().Err(rerr).Stringer("session_id", sess.ID).Msg("failed to revoke orphaned session")
			}
			return nil, fmt.Errorf("issue token: %w", err)
		}

		s.recorder.Record(ctx, audit.Event{
			Type:        audit.EventSessionCreated,
			TenantID:    sess.TenantID,
			PrincipalID: sess.PrincipalID,
			SessionID:   sess.ID,
			RequestID:   meta.RequestID,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
		})
		return &Created{Session: sess, Token: token}, nil
	}

	return nil, fmt.Errorf("create session: token id collision persisted after %d attempts", createAttempts)
}

// FindActive implements auth.SessionSource. The active predicate is
// evaluated against the store on every call; results are never cached, so
// a revocation is effective on the very next request.
func (s *Service) FindActive(ctx context.Context, tokenID string) (*auth.ActiveSession, error) {
	sess, err := s.repo.FindActiveByTokenID(ctx, tokenID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	return &auth.ActiveSession{
		ID:          sess.ID,
		TenantID:    sess.TenantID,
		PrincipalID: sess.PrincipalID,
		CSRFSecret:  sess.CSRFSecret,
	}, nil
}

// Touch implements auth.SessionSource. Best effort: last_seen_at is
// operator telemetry, not a liveness input, so failures are logged and
// swallowed.
func (s *Service) Touch(ctx context.Context, sessionID uuid.UUID) {
	if err := s.repo.Touch(ctx, sessionID, s.now().UTC()); err != nil {
		s.logger.Warn().Err(err).Stringer("session_id", sessionID).Msg("session touch failed")
	}
}

// Revoke marks the session revoked. Idempotent: revoking an already
// revoked or expired session succeeds without changing the stored
// revocation, and only the call that performs the transition emits an
// audit event.
func (s *Service) Revoke(ctx context.Context, tenantID string, id uuid.UUID, reason string, meta ClientMeta) error {
	transitioned, err := s.repo.Revoke(ctx, tenantID, id, reason, s.now().UTC())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if !transitioned {
		return nil
	}

	sess, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil || sess == nil {
		s.logger.Warn().Err(err).Stringer("session_id", id).Msg("revoked session not readable for audit")
	}
	ev := audit.Event{
		Type:      audit.EventSessionRevoked,
		TenantID:  tenantID,
		SessionID: id,
		RequestID: meta.RequestID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Detail:    reason,
	}
	if sess != nil {
		ev.PrincipalID = sess.PrincipalID
	}
	s.recorder.Record(ctx, ev)
	return nil
}

// RevokeOwned is the self-service variant: the caller may only revoke a
// session that belongs to them. Ownership misses and plain misses are the
// same ErrNotFound.
func (s *Service) RevokeOwned(ctx context.Context, tenantID string, principalID, id uuid.UUID, meta ClientMeta) error {
	sess, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil || sess.PrincipalID != principalID {
		return ErrNotFound
	}
	return s.Revoke(ctx, tenantID, id, ReasonLogout, meta)
}

// RevokeAllForPrincipal revokes every live session of the principal in one
// conditional update and returns how many were transitioned. A count of
// zero is a success: the desired end state already held.
func (s *Service) RevokeAllForPrincipal(ctx context.Context, tenantID string, principalID uuid.UUID, reason string, meta ClientMeta) (int64, error) {
	n, err := s.repo.RevokeAllForPrincipal(ctx, tenantID, principalID, reason, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for principal: %w", err)
	}
	if n > 0 {
		s.recorder.Record(ctx, audit.Event{
			Type:        audit.EventSessionAdminRevokedBulk,
			TenantID:    tenantID,
			PrincipalID: principalID,
			RequestID:   meta.RequestID,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
			Detail:      fmt.Sprintf("reason=%s count=%d", reason, n),
		})
	}
	return n, nil
}

// ListForPrincipal returns the principal's sessions, newest first, with
// the total for pagination.
func (s *Service) ListForPrincipal(ctx context.Context, tenantID string, principalID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.repo.ListByPrincipal(ctx, tenantID, principalID, limit, offset)
}

// SweepExpired deletes sessions whose expiry is older than the retention
// window. Rows inside the window are kept, revoked or not, so that recent
// history stays queryable for support and audit.
func (s *Service) SweepExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)
	n, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("swept expired sessions")
	}
	return n, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
