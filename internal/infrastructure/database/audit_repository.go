package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

const eventColumns = `id, event_type, entity_type, entity_id, action, actor_id,
	actor_email, actor_role, source_addr, occurred_at, changes, metadata,
	compliance_relevant, retention_years`

// AuditEventRepository is the Postgres event store backing the trail: the
// hot `audit_events` table plus the long-term `audit_events_archive`.
// Inserts are keyed on the event ID and duplicate-tolerant so retried
// flushes stay safe.
type AuditEventRepository struct {
	db *pgxpool.Pool
}

func NewAuditEventRepository(db *pgxpool.Pool) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) InsertBatch(ctx context.Context, events []*audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		if err := event.Validate(); err != nil {
			return err
		}
		changesJSON, err := json.Marshal(event.Changes)
		if err != nil {
			return errors.NewInternalError("failed to marshal event changes").WithCause(err)
		}
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return errors.NewInternalError("failed to marshal event metadata").WithCause(err)
		}

		batch.Queue(`
			INSERT INTO audit_events (
				id, event_type, entity_type, entity_id, action, actor_id,
				actor_email, actor_role, source_addr, occurred_at, changes,
				metadata, compliance_relevant, retention_years
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (id) DO NOTHING`,
			event.ID,
			string(event.Type),
			event.EntityType,
			event.EntityID,
			event.Action,
			event.ActorID,
			event.ActorEmail,
			event.ActorRole,
			nullable(event.SourceAddr),
			event.Timestamp,
			changesJSON,
			metadataJSON,
			event.ComplianceRelevant,
			event.RetentionYears,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return errors.NewInternalError("failed to insert audit events").WithCause(err)
		}
	}
	return nil
}

func (r *AuditEventRepository) CountByActorSince(ctx context.Context, actorID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE actor_id = $1 AND occurred_at >= $2`,
		actorID, since).Scan(&count)
	if err != nil {
		return 0, errors.NewInternalError("failed to count actor events").WithCause(err)
	}
	return count, nil
}

func (r *AuditEventRepository) HasSourceAddr(ctx context.Context, actorID, addr string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM audit_events WHERE actor_id = $1 AND source_addr = $2
			UNION
			SELECT 1 FROM audit_events_archive WHERE actor_id = $1 AND source_addr = $2
		)`,
		actorID, addr).Scan(&exists)
	if err != nil {
		return false, errors.NewInternalError("failed to check source address").WithCause(err)
	}
	return exists, nil
}

func (r *AuditEventRepository) ListBetween(ctx context.Context, start, end time.Time) ([]*audit.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at ASC`,
		start, end)
	if err != nil {
		return nil, errors.NewInternalError("failed to list audit events").WithCause(err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *AuditEventRepository) ListExpired(ctx context.Context, retentionYears int, cutoff time.Time) ([]*audit.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE retention_years = $1 AND occurred_at < $2
		ORDER BY occurred_at ASC`,
		retentionYears, cutoff)
	if err != nil {
		return nil, errors.NewInternalError("failed to list expired events").WithCause(err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *AuditEventRepository) ListModifiedAfterInsert(ctx context.Context) ([]*audit.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE updated_at IS DISTINCT FROM created_at
		ORDER BY occurred_at ASC`)
	if err != nil {
		return nil, errors.NewInternalError("failed to list modified events").WithCause(err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *AuditEventRepository) ListKnownAddrsBefore(ctx context.Context, before time.Time) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT source_addr FROM audit_events
		WHERE source_addr IS NOT NULL AND occurred_at < $1
		UNION
		SELECT DISTINCT source_addr FROM audit_events_archive
		WHERE source_addr IS NOT NULL AND occurred_at < $1`,
		before)
	if err != nil {
		return nil, errors.NewInternalError("failed to list known addresses").WithCause(err)
	}
	defer rows.Close()

	addrs := make(map[string]struct{})
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, errors.NewInternalError("failed to scan address").WithCause(err)
		}
		addrs[addr] = struct{}{}
	}
	return addrs, rows.Err()
}

func (r *AuditEventRepository) CopyToArchive(ctx context.Context, events []*audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_events_archive
		SELECT * FROM audit_events WHERE id = ANY($1)
		ON CONFLICT (id) DO NOTHING`,
		ids)
	if err != nil {
		return errors.NewInternalError("failed to copy events to archive").WithCause(err)
	}
	return nil
}

func (r *AuditEventRepository) DeleteFromActive(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM audit_events WHERE id = ANY($1)`, ids)
	if err != nil {
		return errors.NewInternalError("failed to delete archived events").WithCause(err)
	}
	return nil
}

func scanEvents(rows pgx.Rows) ([]*audit.Event, error) {
	var events []*audit.Event
	for rows.Next() {
		var (
			event        audit.Event
			eventType    string
			sourceAddr   *string
			changesJSON  []byte
			metadataJSON []byte
		)
		err := rows.Scan(
			&event.ID,
			&eventType,
			&event.EntityType,
			&event.EntityID,
			&event.Action,
			&event.ActorID,
			&event.ActorEmail,
			&event.ActorRole,
			&sourceAddr,
			&event.Timestamp,
			&changesJSON,
			&metadataJSON,
			&event.ComplianceRelevant,
			&event.RetentionYears,
		)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan audit event").WithCause(err)
		}
		event.Type = audit.EventType(eventType)
		if sourceAddr != nil {
			event.SourceAddr = *sourceAddr
		}
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &event.Changes); err != nil {
				return nil, errors.NewInternalError("failed to unmarshal event changes").WithCause(err)
			}
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, errors.NewInternalError("failed to unmarshal event metadata").WithCause(err)
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
