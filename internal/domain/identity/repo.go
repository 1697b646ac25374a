package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateUsername is returned when a username already exists within the
// tenant.
var ErrDuplicateUsername = errors.New("username already exists in tenant")

// Repository is the persistence contract for principals. Lookups are always
// tenant-scoped; a (nil, nil) return means no principal matched within that
// tenant.
type Repository interface {
	Create(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Principal, error)
	GetByUsername(ctx context.Context, tenantID, username string) (*Principal, error)
	GetByOIDCSubject(ctx context.Context, tenantID, subject string) (*Principal, error)
	UpdateLastLogin(ctx context.Context, tenantID string, id uuid.UUID) error
	SetStatus(ctx context.Context, tenantID string, id uuid.UUID, status string) error
}
