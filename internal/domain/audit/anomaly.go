package audit

import (
	"time"

	"github.com/google/uuid"
)

// AnomalyType tags one suspicious trait observed on an event.
type AnomalyType string

const (
	AnomalyAfterHours     AnomalyType = "after_hours"
	AnomalyRapidActions   AnomalyType = "rapid_actions"
	AnomalyNewLocation    AnomalyType = "new_location"
	AnomalyBulkDataAccess AnomalyType = "bulk_data_access"
)

// AnomalySeverity ranks a report for triage.
type AnomalySeverity string

const (
	AnomalyCritical AnomalySeverity = "critical"
	AnomalyHigh     AnomalySeverity = "high"
	AnomalyMedium   AnomalySeverity = "medium"
	AnomalyLow      AnomalySeverity = "low"
)

// AnomalyReport is one persisted detection outcome for one event.
type AnomalyReport struct {
	ID         uuid.UUID       `json:"id"`
	EventID    uuid.UUID       `json:"event_id"`
	ActorID    string          `json:"actor_id"`
	Types      []AnomalyType   `json:"types"`
	Severity   AnomalySeverity `json:"severity"`
	DetectedAt time.Time       `json:"detected_at"`
	Resolved   bool            `json:"resolved"`
}

// NewAnomalyReport builds a report and derives its severity from the flag
// set: critical when bulk access is present or three or more flags fired,
// high for the new-location plus after-hours pairing, medium when only
// rapid-actions fired, otherwise low.
func NewAnomalyReport(eventID uuid.UUID, actorID string, types []AnomalyType) *AnomalyReport {
	return &AnomalyReport{
		ID:         uuid.New(),
		EventID:    eventID,
		ActorID:    actorID,
		Types:      types,
		Severity:   deriveSeverity(types),
		DetectedAt: time.Now().UTC(),
	}
}

func deriveSeverity(types []AnomalyType) AnomalySeverity {
	has := func(t AnomalyType) bool {
		for _, candidate := range types {
			if candidate == t {
				return true
			}
		}
		return false
	}

	if has(AnomalyBulkDataAccess) || len(types) >= 3 {
		return AnomalyCritical
	}
	if has(AnomalyNewLocation) && has(AnomalyAfterHours) {
		return AnomalyHigh
	}
	if len(types) == 1 && has(AnomalyRapidActions) {
		return AnomalyMedium
	}
	return AnomalyLow
}

// Has reports whether the given anomaly type is present.
func (r *AnomalyReport) Has(t AnomalyType) bool {
	for _, candidate := range r.Types {
		if candidate == t {
			return true
		}
	}
	return false
}
