package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, tenant_id, principal_id, token_id, csrf_secret,
	issued_at, expires_at, last_seen_at, revoked_at, revoked_reason,
	ip_address, user_agent`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO session (
			id, tenant_id, principal_id, token_id, csrf_secret,
			issued_at, expires_at, last_seen_at, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.TenantID, s.PrincipalID, s.TokenID, s.CSRFSecret,
		s.IssuedAt, s.ExpiresAt, s.LastSeenAt, s.IPAddress, s.UserAgent,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTokenID
		}
		return err
	}
	return nil
}

// FindActiveByTokenID pushes the active predicate into the query: revoked
// and expired rows are filtered out in SQL, never in the caller.
func (r *repoPG) FindActiveByTokenID(ctx context.Context, tokenID string, now time.Time) (*Session, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM session
		 WHERE token_id = $1 AND revoked_at IS NULL AND expires_at > $2`,
		tokenID, now))
}

func (r *repoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Session, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM session WHERE tenant_id = $1 AND id = $2`,
		tenantID, id))
}

func (r *repoPG) Touch(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session SET last_seen_at = $2
		 WHERE id = $1 AND revoked_at IS NULL`,
		id, now)
	return err
}

func (r *repoPG) Revoke(ctx context.Context, tenantID string, id uuid.UUID, reason string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE session SET revoked_at = $4, revoked_reason = $3
		 WHERE tenant_id = $1 AND id = $2 AND revoked_at IS NULL`,
		tenantID, id, reason, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) RevokeAllForPrincipal(ctx context.Context, tenantID string, principalID uuid.UUID, reason string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE session SET revoked_at = $4, revoked_reason = $3
		 WHERE tenant_id = $1 AND principal_id = $2 AND revoked_at IS NULL`,
		tenantID, principalID, reason, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) ListByPrincipal(ctx context.Context, tenantID string, principalID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session WHERE tenant_id = $1 AND principal_id = $2`,
		tenantID, principalID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM session
		 WHERE tenant_id = $1 AND principal_id = $2
		 ORDER BY issued_at DESC LIMIT $3 OFFSET $4`,
		tenantID, principalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	return sessions, total, rows.Err()
}

func (r *repoPG) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM session WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) scan(row pgx.Row) (*Session, error) {
	s := &Session{}
	var reason *string
	err := row.Scan(
		&s.ID, &s.TenantID, &s.PrincipalID, &s.TokenID, &s.CSRFSecret,
		&s.IssuedAt, &s.ExpiresAt, &s.LastSeenAt, &s.RevokedAt, &reason,
		&s.IPAddress, &s.UserAgent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if reason != nil {
		s.RevokedReason = *reason
	}
	return s, nil
}
