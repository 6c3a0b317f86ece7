package audit

// EventType represents the category of audit event.
type EventType string

const (
	EventDataAccess       EventType = "data_access"
	EventDataModification EventType = "data_modification"
	EventAuthentication   EventType = "authentication"
	EventAuthorization    EventType = "authorization"
	EventComplianceCheck  EventType = "compliance_check"
	EventApprovalWorkflow EventType = "approval_workflow"
	EventCommunication    EventType = "communication_sent"
	EventDocumentViewed   EventType = "document_viewed"
	EventReportGenerated  EventType = "report_generated"
	EventConfigChange     EventType = "configuration_change"
	EventSystem           EventType = "system_event"
)

// String returns the string representation of the event type.
func (et EventType) String() string {
	return string(et)
}

// Valid reports whether the event type is known.
func (et EventType) Valid() bool {
	switch et {
	case EventDataAccess, EventDataModification, EventAuthentication,
		EventAuthorization, EventComplianceCheck, EventApprovalWorkflow,
		EventCommunication, EventDocumentViewed, EventReportGenerated,
		EventConfigChange, EventSystem:
		return true
	default:
		return false
	}
}

// IsSecurityEvent reports whether the event type belongs to the security
// report breakdown.
func (et EventType) IsSecurityEvent() bool {
	return et == EventAuthentication || et == EventAuthorization
}

// IsComplianceRelevant reports whether the event type alone makes an event
// compliance relevant, independent of its action.
func (et EventType) IsComplianceRelevant() bool {
	switch et {
	case EventComplianceCheck, EventApprovalWorkflow, EventDataModification, EventConfigChange:
		return true
	default:
		return false
	}
}

// highRiskActions are pre-classified as requiring immediate durable logging
// and alerting rather than batched logging.
var highRiskActions = map[string]struct{}{
	"bulk_export":           {},
	"patient_data_export":   {},
	"record_delete":         {},
	"permission_change":     {},
	"user_delete":           {},
	"encryption_key_access": {},
	"compliance_override":   {},
	"retention_override":    {},
}

// IsHighRiskAction reports whether an action is in the fixed high-risk list.
func IsHighRiskAction(action string) bool {
	_, ok := highRiskActions[action]
	return ok
}

// HighRiskActions returns the fixed high-risk action list.
func HighRiskActions() []string {
	actions := make([]string, 0, len(highRiskActions))
	for a := range highRiskActions {
		actions = append(actions, a)
	}
	return actions
}

// RetentionYears computes the retention window for an event from its entity
// and event type. Device and clinical records carry the longest statutory
// windows; authentication trails the shortest. Unknown entities default to
// the conservative 7 years.
func RetentionYears(eventType EventType, entityType string) int {
	switch entityType {
	case "device", "clinical_data", "evidence_document":
		return 7
	case "patient", "health_record", "contact_health":
		return 6
	}
	if eventType == EventAuthentication || eventType == EventAuthorization {
		return 3
	}
	return 7
}

// RetentionBuckets lists every distinct retention window in ascending order,
// for bucket-wise archival sweeps.
func RetentionBuckets() []int {
	return []int{3, 6, 7}
}
