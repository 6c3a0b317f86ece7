package audit

import (
	"time"

	"github.com/google/uuid"
)

// ReportType selects the detail payload of a compliance report.
type ReportType string

const (
	ReportCompliance   ReportType = "compliance"
	ReportUserActivity ReportType = "user_activity"
	ReportDataAccess   ReportType = "data_access"
	ReportSecurity     ReportType = "security"
)

// Valid reports whether the report type is known.
func (t ReportType) Valid() bool {
	switch t {
	case ReportCompliance, ReportUserActivity, ReportDataAccess, ReportSecurity:
		return true
	default:
		return false
	}
}

// ExportFormat names the supported export renderings. Rendering itself is
// performed outside this subsystem; only the structured payload is built here.
type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ReportSummary aggregates counts common to every report type.
type ReportSummary struct {
	TotalEvents      int `json:"total_events"`
	UniqueActors     int `json:"unique_actors"`
	ComplianceEvents int `json:"compliance_events"`
	HighRiskEvents   int `json:"high_risk_events"`
}

// ComplianceDetail breaks compliance-relevant events down by regulation tag.
type ComplianceDetail struct {
	ByRegulation map[string]int `json:"by_regulation"`
	ByEventType  map[string]int `json:"by_event_type"`
}

// UserActivityDetail breaks events down per actor.
type UserActivityDetail struct {
	ActionsByActor map[string]int `json:"actions_by_actor"`
	TopActions     map[string]int `json:"top_actions"`
}

// DataAccessDetail breaks data-access events down including sensitive and
// bulk subsets.
type DataAccessDetail struct {
	TotalAccesses     int            `json:"total_accesses"`
	SensitiveAccesses int            `json:"sensitive_accesses"`
	BulkAccesses      int            `json:"bulk_accesses"`
	ByEntityType      map[string]int `json:"by_entity_type"`
}

// SecurityDetail breaks security events down: authentication failures,
// after-hours access, and newly observed source addresses.
type SecurityDetail struct {
	AuthFailures    int      `json:"auth_failures"`
	AfterHoursCount int      `json:"after_hours_count"`
	NewSourceAddrs  []string `json:"new_source_addrs,omitempty"`
}

// Report is the structured payload of one generated compliance report.
// Exactly one detail field is populated, matching the report type.
type Report struct {
	ID          uuid.UUID  `json:"id"`
	Type        ReportType `json:"type"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
	GeneratedBy string     `json:"generated_by"`
	GeneratedAt time.Time  `json:"generated_at"`

	Summary ReportSummary `json:"summary"`

	Compliance   *ComplianceDetail   `json:"compliance,omitempty"`
	UserActivity *UserActivityDetail `json:"user_activity,omitempty"`
	DataAccess   *DataAccessDetail   `json:"data_access,omitempty"`
	Security     *SecurityDetail     `json:"security,omitempty"`
}

// IntegrityFindingType tags a finding from the periodic integrity scan.
type IntegrityFindingType string

const (
	FindingTimeGap            IntegrityFindingType = "time_gap"
	FindingDirectModification IntegrityFindingType = "direct_modification"
)

// IntegrityFinding is one problem surfaced by the integrity checker.
type IntegrityFinding struct {
	Type        IntegrityFindingType `json:"type"`
	Description string               `json:"description"`
	EventID     *uuid.UUID           `json:"event_id,omitempty"`
	GapStart    *time.Time           `json:"gap_start,omitempty"`
	GapEnd      *time.Time           `json:"gap_end,omitempty"`
	DetectedAt  time.Time            `json:"detected_at"`
}
