package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PGRecorder appends events to the session_audit table. The table is
// append-only: nothing in this package updates or deletes prior rows.
type PGRecorder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPGRecorder(pool *pgxpool.Pool, logger zerolog.Logger) *PGRecorder {
	return &PGRecorder{pool: pool, logger: logger}
}

func (r *PGRecorder) Record(ctx context.Context, event Event) {
	if event.Recorded.IsZero() {
		event.Recorded = time.Now().UTC()
	}

	// Audit writes ride on a background context: the request that produced
	// the event may already be finished (or cancelled) by the time the row
	// lands, and that must not lose the event.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	const query = `
		INSERT INTO session_audit (
			id, event_type, tenant_id, principal_id, session_id,
			request_id, ip_address, user_agent, detail, recorded
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(writeCtx, query,
		uuid.New(), event.Type, event.TenantID, nullableUUID(event.PrincipalID),
		nullableUUID(event.SessionID), event.RequestID, event.IPAddress,
		event.UserAgent, event.Detail, event.Recorded,
	)
	if err != nil {
		// Best effort: the primary operation already proceeded. The error
		// line is what operational alerting keys on.
		r.logger.Error().Err(err).
			Str("audit_event", event.Type).
			Str("tenant_id", event.TenantID).
			Msg("session audit write failed")
	}
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
