package compliance

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

// ApprovalStatus is the lifecycle of a human compliance review.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status can no longer change.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Approval gates blocked content on a human review decision. Created by the
// workflow gate when a check has violations; its terminal status is set
// exactly once.
type Approval struct {
	ID          uuid.UUID      `json:"id"`
	ContentID   string         `json:"content_id"`
	ContentType ContentType    `json:"content_type"`
	CheckID     uuid.UUID      `json:"check_id"`
	Status      ApprovalStatus `json:"status"`
	ReviewerID  string         `json:"reviewer_id,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
}

// NewApproval creates a pending approval linked to a compliance check.
func NewApproval(contentID string, contentType ContentType, checkID uuid.UUID) (*Approval, error) {
	if contentID == "" {
		return nil, errors.NewValidationError("MISSING_CONTENT_ID", "content ID is required")
	}
	if checkID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_CHECK_ID", "check ID is required")
	}
	return &Approval{
		ID:          uuid.New(),
		ContentID:   contentID,
		ContentType: contentType,
		CheckID:     checkID,
		Status:      ApprovalPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Resolve records the reviewer decision. A second resolution attempt is a
// business error; the first decision stands.
func (a *Approval) Resolve(status ApprovalStatus, reviewerID, notes string) error {
	if a.Status.IsTerminal() {
		return errors.ErrApprovalAlreadyFinal
	}
	if !status.IsTerminal() {
		return errors.NewValidationError("INVALID_DECISION",
			"review decision must be approved or rejected")
	}
	if reviewerID == "" {
		return errors.NewValidationError("MISSING_REVIEWER", "reviewer ID is required")
	}
	now := time.Now().UTC()
	a.Status = status
	a.ReviewerID = reviewerID
	a.Notes = notes
	a.ReviewedAt = &now
	return nil
}

// Age returns how long the approval has been waiting, zero once resolved.
func (a *Approval) Age(now time.Time) time.Duration {
	if a.Status.IsTerminal() {
		return 0
	}
	return now.Sub(a.CreatedAt)
}
