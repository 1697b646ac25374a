// Package session implements server-side login sessions: the authoritative,
// revocable record behind every bearer token. A token admits a request only
// while its session row is active; revoking the row cuts access on the next
// request regardless of the token's own expiry.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Revocation reasons. Closed set: audit consumers and support tooling key
// on these strings.
const (
	ReasonLogout           = "logout"
	ReasonPasswordReset    = "password_reset"
	ReasonAdminBan         = "admin_ban"
	ReasonAccountSuspended = "account_suspended"
)

// ValidReason reports whether reason is one of the recognized revocation
// reasons.
func ValidReason(reason string) bool {
	switch reason {
	case ReasonLogout, ReasonPasswordReset, ReasonAdminBan, ReasonAccountSuspended:
		return true
	}
	return false
}

// Session is one login. TokenID is the jti embedded in the JWT issued at
// login; it is unique across all sessions and is the only join between a
// presented token and this row. CSRFSecret is per-session material handed
// to the client at login for double-submit checks on state-changing calls.
type Session struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      string     `json:"tenant_id"`
	PrincipalID   uuid.UUID  `json:"principal_id"`
	TokenID       string     `json:"-"`
	CSRFSecret    string     `json:"-"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty"`
}

// Active reports whether the session admits requests at the given instant:
// not revoked and not past its expiry. Expiry is checked against the row,
// not the token, so the two can never disagree in the session's favor.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// ClientMeta is the request context captured at login and carried into the
// session row and audit trail.
type ClientMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}
