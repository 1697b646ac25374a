package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository used by tests and development mode.
// Thread-safe for concurrent access.
type memRepo struct {
	mu         sync.RWMutex
	principals map[uuid.UUID]*Principal
}

func NewMemRepo() Repository {
	return &memRepo{principals: make(map[uuid.UUID]*Principal)}
}

func (r *memRepo) Create(_ context.Context, p *Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	for _, existing := range r.principals {
		if existing.TenantID == p.TenantID && existing.Username == p.Username {
			return ErrDuplicateUsername
		}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	r.principals[p.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principals[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) GetByUsername(_ context.Context, tenantID, username string) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.principals {
		if p.TenantID == tenantID && p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetByOIDCSubject(_ context.Context, tenantID, subject string) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.principals {
		if p.TenantID == tenantID && p.OIDCSubject != nil && *p.OIDCSubject == subject {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) UpdateLastLogin(_ context.Context, tenantID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.principals[id]; ok && p.TenantID == tenantID {
		now := time.Now().UTC()
		p.LastLogin = &now
		p.UpdatedAt = now
	}
	return nil
}

func (r *memRepo) SetStatus(_ context.Context, tenantID string, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.principals[id]; ok && p.TenantID == tenantID {
		p.Status = status
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}
