package identity

import (
	"time"

	"github.com/google/uuid"
)

// Principal status values.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Principal maps to the principal table: a user account within a tenant.
// Medics, dispatchers, billers and administrators are all principals; the
// Role field drives coarse endpoint authorization.
type Principal struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TenantID     string     `db:"tenant_id" json:"tenant_id"`
	Username     string     `db:"username" json:"username"`
	Email        *string    `db:"email" json:"email,omitempty"`
	DisplayName  *string    `db:"display_name" json:"display_name,omitempty"`
	Role         string     `db:"role" json:"role"`
	PasswordHash string     `db:"password_hash" json:"-"`
	OIDCSubject  *string    `db:"oidc_subject" json:"-"`
	Status       string     `db:"status" json:"status"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Disabled reports whether the account has been suspended out-of-band.
func (p *Principal) Disabled() bool {
	return p.Status != StatusActive
}
