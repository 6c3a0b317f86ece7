package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

// ChangeKind classifies a field-level change attached to an event.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeRecord captures one field transition for data-modification events.
type ChangeRecord struct {
	Field    string     `json:"field"`
	OldValue string     `json:"old_value,omitempty"`
	NewValue string     `json:"new_value,omitempty"`
	Kind     ChangeKind `json:"kind"`
}

// Event is an immutable audit log entry. Mutation after persistence is
// itself a tamper signal: the integrity checker flags any stored record
// whose created and updated timestamps diverge.
type Event struct {
	ID   uuid.UUID `json:"id"`
	Type EventType `json:"type"`

	// Target entity
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`

	// Actor, resolved through the identity directory at log time
	ActorID    string `json:"actor_id"`
	ActorEmail string `json:"actor_email,omitempty"`
	ActorRole  string `json:"actor_role,omitempty"`
	SourceAddr string `json:"source_addr,omitempty"`

	Timestamp time.Time              `json:"timestamp"`
	Changes   []ChangeRecord         `json:"changes,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	ComplianceRelevant bool `json:"compliance_relevant"`
	RetentionYears     int  `json:"retention_years"`
}

// NewEvent creates a validated audit event, classifying retention and
// compliance relevance from the event type, entity, and action.
func NewEvent(eventType EventType, entityType, entityID, action, actorID string) (*Event, error) {
	if !eventType.Valid() {
		return nil, errors.NewValidationError("INVALID_EVENT_TYPE",
			"event type must be valid")
	}
	if entityType == "" {
		return nil, errors.NewValidationError("MISSING_ENTITY_TYPE",
			"entity type is required")
	}
	if action == "" {
		return nil, errors.NewValidationError("MISSING_ACTION", "action is required")
	}
	if actorID == "" {
		return nil, errors.NewValidationError("MISSING_ACTOR_ID", "actor ID is required")
	}

	return &Event{
		ID:                 uuid.New(),
		Type:               eventType,
		EntityType:         entityType,
		EntityID:           entityID,
		Action:             action,
		ActorID:            actorID,
		Timestamp:          time.Now().UTC(),
		ComplianceRelevant: eventType.IsComplianceRelevant() || IsHighRiskAction(action),
		RetentionYears:     RetentionYears(eventType, entityType),
	}, nil
}

// IsHighRisk reports whether this event must take the synchronous flush path.
func (e *Event) IsHighRisk() bool {
	return IsHighRiskAction(e.Action)
}

// RetentionCutoff returns the moment this event leaves the active store,
// relative to the supplied clock.
func (e *Event) RetentionCutoff() time.Time {
	return e.Timestamp.AddDate(e.RetentionYears, 0, 0)
}

// IsRetentionExpired reports whether the event is due for archival at now.
func (e *Event) IsRetentionExpired(now time.Time) bool {
	return now.After(e.RetentionCutoff())
}

// Validate performs comprehensive validation of the event.
func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return errors.NewValidationError("INVALID_EVENT_TYPE", "unknown event type")
	}
	if e.ActorID == "" {
		return errors.NewValidationError("MISSING_ACTOR_ID", "actor ID is required")
	}
	if e.EntityType == "" {
		return errors.NewValidationError("MISSING_ENTITY_TYPE", "entity type is required")
	}
	if e.Action == "" {
		return errors.NewValidationError("MISSING_ACTION", "action is required")
	}
	if e.RetentionYears <= 0 {
		return errors.NewValidationError("INVALID_RETENTION",
			"retention years must be positive")
	}
	return nil
}
