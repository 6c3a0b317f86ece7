package compliance

import (
	"time"

	"github.com/google/uuid"
)

// ContentType identifies the outbound channel the content is destined for.
type ContentType string

const (
	ContentEmail             ContentType = "email"
	ContentSMS               ContentType = "sms"
	ContentCallScript        ContentType = "call_script"
	ContentMarketingMaterial ContentType = "marketing_material"
)

func (t ContentType) String() string {
	return string(t)
}

// CheckStatus is the aggregate outcome of a compliance check.
type CheckStatus string

const (
	StatusCompliant  CheckStatus = "compliant"
	StatusWarnings   CheckStatus = "warnings"
	StatusViolations CheckStatus = "violations"
)

func (s CheckStatus) String() string {
	return string(s)
}

// Result records the outcome of one rule against one piece of content.
type Result struct {
	RuleID         uuid.UUID    `json:"rule_id"`
	RuleName       string       `json:"rule_name"`
	Category       RuleCategory `json:"category"`
	Severity       RuleSeverity `json:"severity"`
	Passed         bool         `json:"passed"`
	Evidence       []string     `json:"evidence,omitempty"`
	Recommendation string       `json:"recommendation,omitempty"`
	Regulation     string       `json:"regulation,omitempty"`
}

// Check is one immutable compliance evaluation of a piece of content.
type Check struct {
	ID          uuid.UUID   `json:"id"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
	Results     []Result    `json:"results"`
	Status      CheckStatus `json:"status"`
	CheckedBy   string      `json:"checked_by"`
	CheckedAt   time.Time   `json:"checked_at"`
}

// NewCheck aggregates rule results into a check. Status is violations if any
// violation-severity rule failed, warnings if any warning-severity rule
// failed, otherwise compliant.
func NewCheck(contentType ContentType, content, checkedBy string, results []Result) *Check {
	return &Check{
		ID:          uuid.New(),
		ContentType: contentType,
		Content:     content,
		Results:     results,
		Status:      aggregateStatus(results),
		CheckedBy:   checkedBy,
		CheckedAt:   time.Now().UTC(),
	}
}

func aggregateStatus(results []Result) CheckStatus {
	status := StatusCompliant
	for _, r := range results {
		if r.Passed {
			continue
		}
		switch r.Severity {
		case SeverityViolation:
			return StatusViolations
		case SeverityWarning:
			status = StatusWarnings
		}
	}
	return status
}

// HasViolations reports whether the check failed at violation severity.
func (c *Check) HasViolations() bool {
	return c.Status == StatusViolations
}

// FailedResults returns the results that did not pass.
func (c *Check) FailedResults() []Result {
	var failed []Result
	for _, r := range c.Results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// FailedCategories returns the distinct categories with at least one failure.
func (c *Check) FailedCategories() []RuleCategory {
	seen := make(map[RuleCategory]struct{})
	var categories []RuleCategory
	for _, r := range c.Results {
		if r.Passed {
			continue
		}
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		categories = append(categories, r.Category)
	}
	return categories
}
