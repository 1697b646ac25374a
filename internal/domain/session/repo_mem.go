package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is a mutex-guarded in-memory Repository. Used in tests and for
// single-process development runs without Postgres; it honors the same
// conditional-update semantics as the SQL implementation.
type memRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Session
	byToken map[string]uuid.UUID
}

func NewMemRepo() Repository {
	return &memRepo{
		byID:    make(map[uuid.UUID]*Session),
		byToken: make(map[string]uuid.UUID),
	}
}

func (r *memRepo) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byToken[s.TokenID]; exists {
		return ErrDuplicateTokenID
	}
	cp := *s
	r.byID[cp.ID] = &cp
	r.byToken[cp.TokenID] = cp.ID
	return nil
}

func (r *memRepo) FindActiveByTokenID(_ context.Context, tokenID string, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byToken[tokenID]
	if !ok {
		return nil, nil
	}
	s := r.byID[id]
	if s == nil || !s.Active(now) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.byID[id]
	if s == nil || s.TenantID != tenantID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) Touch(_ context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.byID[id]; s != nil && s.RevokedAt == nil {
		s.LastSeenAt = now
	}
	return nil
}

func (r *memRepo) Revoke(_ context.Context, tenantID string, id uuid.UUID, reason string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.byID[id]
	if s == nil || s.TenantID != tenantID || s.RevokedAt != nil {
		return false, nil
	}
	at := now
	s.RevokedAt = &at
	s.RevokedReason = reason
	return true, nil
}

func (r *memRepo) RevokeAllForPrincipal(_ context.Context, tenantID string, principalID uuid.UUID, reason string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.byID {
		if s.TenantID != tenantID || s.PrincipalID != principalID || s.RevokedAt != nil {
			continue
		}
		at := now
		s.RevokedAt = &at
		s.RevokedReason = reason
		n++
	}
	return n, nil
}

func (r *memRepo) ListByPrincipal(_ context.Context, tenantID string, principalID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*Session
	for _, s := range r.byID {
		if s.TenantID == tenantID && s.PrincipalID == principalID {
			cp := *s
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].IssuedAt.After(all[j].IssuedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.byID {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.byID, id)
			delete(r.byToken, s.TokenID)
			n++
		}
	}
	return n, nil
}
