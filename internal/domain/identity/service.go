package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/emsops/emsops/internal/platform/auth"
)

// Service owns principal lifecycle: account creation with password hashing,
// status changes, and the directory lookups the credential verifier uses.
type Service struct {
	repo       Repository
	bcryptCost int
}

func NewService(repo Repository, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost}
}

// CreatePrincipal hashes the password and persists the account. An empty
// password is only valid together with an OIDC subject (delegated-only
// accounts).
func (s *Service) CreatePrincipal(ctx context.Context, p *Principal, password string) error {
	if p.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if p.Username == "" {
		return fmt.Errorf("username is required")
	}
	if p.Role == "" {
		return fmt.Errorf("role is required")
	}
	if password == "" && p.OIDCSubject == nil {
		return fmt.Errorf("password or oidc subject is required")
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		p.PasswordHash = string(hash)
	}

	return s.repo.Create(ctx, p)
}

// Exists reports whether a principal exists within the tenant. Used by the
// admin bulk-revoke endpoint, where a privileged caller gets a real 404.
func (s *Service) Exists(ctx context.Context, tenantID string, id uuid.UUID) (bool, error) {
	p, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// Disable suspends the account. Sessions are revoked separately by the
// caller; a disabled account also fails credential verification on its next
// login attempt.
func (s *Service) Disable(ctx context.Context, tenantID string, id uuid.UUID) error {
	return s.repo.SetStatus(ctx, tenantID, id, StatusDisabled)
}

// RecordLogin updates the principal's last_login. Best effort: a failed
// update never fails the login.
func (s *Service) RecordLogin(ctx context.Context, tenantID string, id uuid.UUID) error {
	return s.repo.UpdateLastLogin(ctx, tenantID, id)
}

// LookupByUsername implements auth.PrincipalDirectory.
func (s *Service) LookupByUsername(ctx context.Context, tenantID, username string) (*auth.PrincipalRecord, error) {
	p, err := s.repo.GetByUsername(ctx, tenantID, username)
	if err != nil {
		return nil, err
	}
	return toRecord(p), nil
}

// LookupByOIDCSubject implements auth.PrincipalDirectory.
func (s *Service) LookupByOIDCSubject(ctx context.Context, tenantID, subject string) (*auth.PrincipalRecord, error) {
	p, err := s.repo.GetByOIDCSubject(ctx, tenantID, subject)
	if err != nil {
		return nil, err
	}
	return toRecord(p), nil
}

func toRecord(p *Principal) *auth.PrincipalRecord {
	if p == nil {
		return nil
	}
	return &auth.PrincipalRecord{
		ID:           p.ID,
		TenantID:     p.TenantID,
		Username:     p.Username,
		Role:         p.Role,
		PasswordHash: p.PasswordHash,
		Disabled:     p.Disabled(),
	}
}
