package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const principalColumns = `id, tenant_id, username, email, display_name, role,
	password_hash, oidc_subject, status, last_login, created_at, updated_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, p *Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO principal (
			id, tenant_id, username, email, display_name, role,
			password_hash, oidc_subject, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.TenantID, p.Username, p.Email, p.DisplayName, p.Role,
		p.PasswordHash, p.OIDCSubject, p.Status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Principal, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principal WHERE tenant_id = $1 AND id = $2`,
		tenantID, id))
}

func (r *repoPG) GetByUsername(ctx context.Context, tenantID, username string) (*Principal, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principal WHERE tenant_id = $1 AND username = $2`,
		tenantID, username))
}

func (r *repoPG) GetByOIDCSubject(ctx context.Context, tenantID, subject string) (*Principal, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principal WHERE tenant_id = $1 AND oidc_subject = $2`,
		tenantID, subject))
}

func (r *repoPG) UpdateLastLogin(ctx context.Context, tenantID string, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE principal SET last_login = NOW(), updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return err
}

func (r *repoPG) SetStatus(ctx context.Context, tenantID string, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE principal SET status = $3, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, status)
	return err
}

func (r *repoPG) scan(row pgx.Row) (*Principal, error) {
	p := &Principal{}
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Username, &p.Email, &p.DisplayName, &p.Role,
		&p.PasswordHash, &p.OIDCSubject, &p.Status, &p.LastLogin,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
