// Package audit records session lifecycle events for compliance and
// operational review. Recording is best effort: a failed audit write is
// surfaced to the log for alerting but never blocks or rolls back the
// operation being audited.
package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types for the session lifecycle. The set is closed: consumers
// (SIEM pipelines, compliance reports) key on these exact strings.
const (
	EventSessionCreated          = "session.created"
	EventSessionRevoked          = "session.revoked"
	EventSessionAdminRevokedBulk = "session.admin_revoked_bulk"
	EventSessionRejected         = "session.rejected"
)

// Event is a single session lifecycle record.
type Event struct {
	Type        string
	TenantID    string
	PrincipalID uuid.UUID
	SessionID   uuid.UUID
	RequestID   string
	IPAddress   string
	UserAgent   string
	Detail      string
	Recorded    time.Time
}

// Recorder persists session lifecycle events. Implementations must be safe
// for concurrent use and must never panic on a sink failure.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// LogRecorder writes events as structured log lines. Used standalone in
// development and as the fallback inside PGRecorder.
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, event Event) {
	if event.Recorded.IsZero() {
		event.Recorded = time.Now().UTC()
	}
	r.logger.Info().
		Str("audit_event", event.Type).
		Str("tenant_id", event.TenantID).
		Str("principal_id", event.PrincipalID.String()).
		Str("session_id", event.SessionID.String()).
		Str("request_id", event.RequestID).
		Str("ip_address", event.IPAddress).
		Str("detail", event.Detail).
		Time("recorded", event.Recorded).
		Msg("session audit")
}

// Nop returns a recorder that discards everything. For tests.
func Nop() Recorder {
	return &LogRecorder{logger: zerolog.Nop()}
}

// SampledRecorder passes every event through to the wrapped recorder except
// session.rejected, which is high volume and recorded once per N occurrences.
// N=1 records everything.
type SampledRecorder struct {
	inner    Recorder
	n        uint64
	rejected atomic.Uint64
}

func NewSampledRecorder(inner Recorder, rejectedSampleN uint64) *SampledRecorder {
	if rejectedSampleN == 0 {
		rejectedSampleN = 1
	}
	return &SampledRecorder{inner: inner, n: rejectedSampleN}
}

func (r *SampledRecorder) Record(ctx context.Context, event Event) {
	if event.Type == EventSessionRejected {
		if r.rejected.Add(1)%r.n != 1 && r.n > 1 {
			return
		}
	}
	r.inner.Record(ctx, event)
}
