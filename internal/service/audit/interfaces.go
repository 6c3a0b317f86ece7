package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
)

// EventStore is the persistence boundary for the audit trail. Inserts must
// be duplicate-tolerant keyed by event ID: a retried flush may re-submit a
// batch that partially succeeded, and re-insertion of an existing ID is a
// no-op.
type EventStore interface {
	// InsertBatch writes the batch to the active store.
	InsertBatch(ctx context.Context, events []*audit.Event) error

	// CountByActorSince counts persisted events for an actor from `since`.
	CountByActorSince(ctx context.Context, actorID string, since time.Time) (int, error)

	// HasSourceAddr reports whether the address has ever been persisted for
	// the actor.
	HasSourceAddr(ctx context.Context, actorID, addr string) (bool, error)

	// ListBetween returns active-store events in [start, end) ordered by
	// timestamp ascending.
	ListBetween(ctx context.Context, start, end time.Time) ([]*audit.Event, error)

	// ListExpired returns active-store events in the given retention-year
	// bucket whose timestamp is before the cutoff.
	ListExpired(ctx context.Context, retentionYears int, cutoff time.Time) ([]*audit.Event, error)

	// ListModifiedAfterInsert returns events whose stored creation and last
	// update timestamps differ, a direct-modification tamper signal.
	ListModifiedAfterInsert(ctx context.Context) ([]*audit.Event, error)

	// ListKnownAddrsBefore returns every source address persisted before the
	// given instant.
	ListKnownAddrsBefore(ctx context.Context, before time.Time) (map[string]struct{}, error)

	// CopyToArchive copies events into the long-term archive store.
	CopyToArchive(ctx context.Context, events []*audit.Event) error

	// DeleteFromActive removes events from the active store. Called only
	// after CopyToArchive succeeded for the same events.
	DeleteFromActive(ctx context.Context, ids []uuid.UUID) error
}

// AnomalyStore persists anomaly reports.
type AnomalyStore interface {
	InsertAnomaly(ctx context.Context, report *audit.AnomalyReport) error
}

// ReportStore persists generated audit reports.
type ReportStore interface {
	InsertReport(ctx context.Context, report *audit.Report) error
}

// Identity is the resolved display detail for an actor.
type Identity struct {
	Email string
	Role  string
}

// UnknownIdentity is the sentinel returned when the directory cannot
// resolve an actor. Lookup failures never block logging.
var UnknownIdentity = Identity{Email: "unknown", Role: "unknown"}

// Directory resolves actor display details.
type Directory interface {
	Lookup(ctx context.Context, actorID string) (Identity, error)
}

// Notification is the insert-only payload handed to the notification sink.
// Delivery and display are outside this subsystem.
type Notification struct {
	RecipientIDs []string               `json:"recipient_ids"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// Notifier is the notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ActivityTracker maintains hot per-actor state for anomaly detection:
// a sliding action counter and the set of known source addresses. A failing
// tracker degrades to store-backed queries.
type ActivityTracker interface {
	// RecordAction registers one action and returns the actor's count within
	// the trailing window.
	RecordAction(ctx context.Context, actorID string, at time.Time) (int, error)

	// IsKnownAddr reports whether the address was seen before for the actor.
	IsKnownAddr(ctx context.Context, actorID, addr string) (bool, error)

	// RememberAddr marks the address as seen for the actor.
	RememberAddr(ctx context.Context, actorID, addr string) error
}

// AlertKind classifies an operational alert emitted by the trail.
type AlertKind string

const (
	AlertHighRisk     AlertKind = "high_risk_event"
	AlertAnomaly      AlertKind = "anomaly_detected"
	AlertIntegrity    AlertKind = "integrity_finding"
	AlertFlushFailure AlertKind = "flush_failure"
)

// Alert is delivered to every subscribed handler. Exactly the fields
// matching the kind are populated.
type Alert struct {
	Kind     AlertKind                `json:"kind"`
	Severity string                   `json:"severity"`
	Message  string                   `json:"message"`
	Event    *audit.Event             `json:"event,omitempty"`
	Anomaly  *audit.AnomalyReport     `json:"anomaly,omitempty"`
	Findings []audit.IntegrityFinding `json:"findings,omitempty"`
	At       time.Time                `json:"at"`
}

// AlertHandler receives trail alerts. Handlers must be fast; high-risk
// alerts are delivered synchronously with the logging call.
type AlertHandler func(Alert)
