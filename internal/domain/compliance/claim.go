package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimType classifies what a medical claim asserts about a product.
type ClaimType string

const (
	ClaimEfficacy      ClaimType = "efficacy"
	ClaimSafety        ClaimType = "safety"
	ClaimComparative   ClaimType = "comparative"
	ClaimEconomic      ClaimType = "economic"
	ClaimQualityOfLife ClaimType = "quality_of_life"
)

func (t ClaimType) String() string {
	return string(t)
}

// EvidenceType classifies the source of a substantiation document.
type EvidenceType string

const (
	EvidenceClinicalStudy       EvidenceType = "clinical_study"
	EvidenceRegulatoryClearance EvidenceType = "regulatory_clearance"
	EvidencePeerReview          EvidenceType = "peer_review"
	EvidenceInternalData        EvidenceType = "internal_data"
	EvidenceExpertOpinion       EvidenceType = "expert_opinion"
)

// SubstantiationStatus is the human-review lifecycle of a claim.
type SubstantiationStatus string

const (
	SubstantiationPending     SubstantiationStatus = "pending"
	SubstantiationApproved    SubstantiationStatus = "approved"
	SubstantiationRejected    SubstantiationStatus = "rejected"
	SubstantiationConditional SubstantiationStatus = "conditional"
)

// EvidenceDocument is substantiation supplied by the caller.
type EvidenceDocument struct {
	ID          uuid.UUID    `json:"id"`
	Type        EvidenceType `json:"type"`
	Title       string       `json:"title"`
	Relevance   float64      `json:"relevance"` // [0,1]
	KeyFindings []string     `json:"key_findings"`
	Limitations []string     `json:"limitations,omitempty"`
}

// MedicalClaim is a marketing claim awaiting or holding substantiation review.
type MedicalClaim struct {
	ID             uuid.UUID            `json:"id"`
	Text           string               `json:"text"`
	Type           ClaimType            `json:"type"`
	ProductName    string               `json:"product_name"`
	Substantiation SubstantiationStatus `json:"substantiation"`
	Evidence       []EvidenceDocument   `json:"evidence,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ReviewedAt     *time.Time           `json:"reviewed_at,omitempty"`
	ReviewedBy     string               `json:"reviewed_by,omitempty"`
}

// NewMedicalClaim creates a pending claim.
func NewMedicalClaim(text string, claimType ClaimType, productName string, evidence []EvidenceDocument) (*MedicalClaim, error) {
	if text == "" {
		return nil, fmt.Errorf("claim text cannot be empty")
	}
	switch claimType {
	case ClaimEfficacy, ClaimSafety, ClaimComparative, ClaimEconomic, ClaimQualityOfLife:
	default:
		return nil, fmt.Errorf("invalid claim type %q", claimType)
	}
	return &MedicalClaim{
		ID:             uuid.New(),
		Text:           text,
		Type:           claimType,
		ProductName:    productName,
		Substantiation: SubstantiationPending,
		Evidence:       evidence,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Resolve sets the terminal substantiation status exactly once.
func (m *MedicalClaim) Resolve(status SubstantiationStatus, reviewedBy string) error {
	if m.Substantiation != SubstantiationPending {
		return fmt.Errorf("claim %s already resolved to %s", m.ID, m.Substantiation)
	}
	switch status {
	case SubstantiationApproved, SubstantiationRejected, SubstantiationConditional:
	default:
		return fmt.Errorf("invalid terminal substantiation status %q", status)
	}
	now := time.Now().UTC()
	m.Substantiation = status
	m.ReviewedAt = &now
	m.ReviewedBy = reviewedBy
	return nil
}

// IssueSeverity ranks a validation issue.
type IssueSeverity string

const (
	IssueCritical IssueSeverity = "critical"
	IssueMajor    IssueSeverity = "major"
	IssueMinor    IssueSeverity = "minor"
)

// IssueType tags the kind of problem found in a claim.
type IssueType string

const (
	IssueRiskyLanguage        IssueType = "risky_language"
	IssueUnsupported          IssueType = "unsupported"
	IssueInsufficientEvidence IssueType = "insufficient_evidence"
	IssueMissingElement       IssueType = "missing_element"
	IssueLowRelevance         IssueType = "low_relevance"
	IssueOverstated           IssueType = "overstated"
)

// ValidationIssue is one problem preventing or weakening substantiation.
type ValidationIssue struct {
	Type        IssueType     `json:"type"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	EvidenceGap string        `json:"evidence_gap,omitempty"`
}

// RiskLevel ranks a regulatory exposure.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// RegulatoryRisk names an agency exposure implied by the claim's issues.
type RegulatoryRisk struct {
	Agency          string    `json:"agency"`
	Level           RiskLevel `json:"level"`
	PotentialAction string    `json:"potential_action"`
	Mitigation      string    `json:"mitigation"`
}

// ClaimValidationResult is the ephemeral output of claim validation.
// Persisting it is the caller's decision.
type ClaimValidationResult struct {
	IsValid         bool              `json:"is_valid"`
	ConfidenceScore int               `json:"confidence_score"` // [0,100]
	Issues          []ValidationIssue `json:"issues,omitempty"`
	Risks           []RegulatoryRisk  `json:"risks,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

// CriticalIssueCount returns the number of critical issues.
func (r *ClaimValidationResult) CriticalIssueCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == IssueCritical {
			count++
		}
	}
	return count
}
