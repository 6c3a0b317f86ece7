package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domainaudit "github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
	auditsvc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/claims"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/ruleengine"
)

const defaultEscalateAfter = 24 * time.Hour

// ComplianceStore persists checks and approvals.
type ComplianceStore interface {
	SaveCheck(ctx context.Context, check *compliance.Check) error
	SaveClaim(ctx context.Context, claim *compliance.MedicalClaim) error
	SaveApproval(ctx context.Context, approval *compliance.Approval) error
	GetApproval(ctx context.Context, id uuid.UUID) (*compliance.Approval, error)
	UpdateApproval(ctx context.Context, approval *compliance.Approval) error
	ListPendingApprovalsOlderThan(ctx context.Context, cutoff time.Time) ([]*compliance.Approval, error)
}

// ReleaseStore records which blocked content has been cleared for the
// paused dispatch to pick up.
type ReleaseStore interface {
	SetReleased(ctx context.Context, contentID, releasedBy string) error
}

// AuditLogger is the slice of the audit trail the gate needs.
type AuditLogger interface {
	LogEvent(ctx context.Context, input auditsvc.LogInput) (uuid.UUID, error)
}

// Config tunes the gate. Zero values take defaults.
type Config struct {
	// ReviewerIDs receive block and escalation notifications.
	ReviewerIDs []string

	// EscalateAfter is the pending age beyond which EscalateStale
	// re-notifies reviewers. Default 24h.
	EscalateAfter time.Duration
}

// ClaimSubmission is one structured claim accompanying intercepted content.
type ClaimSubmission struct {
	Text     string
	Type     compliance.ClaimType
	Evidence []compliance.EvidenceDocument
}

// InterceptRequest describes outbound content awaiting clearance.
type InterceptRequest struct {
	ContentID   string
	ContentType compliance.ContentType
	Content     string
	UserID      string
	SourceAddr  string
	ProductName string
	Claims      []ClaimSubmission

	// BlockOnViolation selects enforcement. When false the gate runs in
	// monitor mode: a violations check is still persisted and audited,
	// but the content passes and no approval is created. The REST layer
	// defaults this to true.
	BlockOnViolation bool

	// Metadata is caller context carried through to the audit events
	// recorded for this intercept.
	Metadata map[string]interface{}
}

// InterceptResult is the gate's decision. Blocked content carries the
// pending approval the dispatch must wait on.
type InterceptResult struct {
	Allowed      bool                                `json:"allowed"`
	Check        *compliance.Check                   `json:"check"`
	Approval     *compliance.Approval                `json:"approval,omitempty"`
	ClaimResults []*compliance.ClaimValidationResult `json:"claim_results,omitempty"`

	// Whitelisted remediation suggestion; equal to the input when nothing
	// applied.
	SuggestedContent string   `json:"suggested_content,omitempty"`
	AppliedFixes     []string `json:"applied_fixes,omitempty"`
}

// Gate intercepts outbound marketing content: every piece is evaluated
// against the rule table, medical language additionally goes through claim
// substantiation, and violations block dispatch behind a human approval.
type Gate struct {
	engine    *ruleengine.Engine
	validator *claims.Validator
	store     ComplianceStore
	releases  ReleaseStore
	auditor   AuditLogger
	notifier  auditsvc.Notifier
	metrics   *Metrics
	logger    *zap.Logger
	tracer    trace.Tracer

	reviewerIDs   []string
	escalateAfter time.Duration
}

func NewGate(engine *ruleengine.Engine, validator *claims.Validator, store ComplianceStore, releases ReleaseStore, auditor AuditLogger, notifier auditsvc.Notifier, metrics *Metrics, logger *zap.Logger, cfg Config) *Gate {
	if cfg.EscalateAfter <= 0 {
		cfg.EscalateAfter = defaultEscalateAfter
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Gate{
		engine:        engine,
		validator:     validator,
		store:         store,
		releases:      releases,
		auditor:       auditor,
		notifier:      notifier,
		metrics:       metrics,
		logger:        logger,
		tracer:        otel.Tracer("gate"),
		reviewerIDs:   cfg.ReviewerIDs,
		escalateAfter: cfg.EscalateAfter,
	}
}

// Intercept clears or blocks one piece of outbound content. Content whose
// check aggregates to violations is persisted together with exactly one
// pending approval, reviewers are notified, and the block is audited.
// With BlockOnViolation off the failing check is persisted and audited
// but the content passes with no approval. Compliant and warnings-level
// content passes, audited as allowed.
func (g *Gate) Intercept(ctx context.Context, req InterceptRequest) (*InterceptResult, error) {
	ctx, span := g.tracer.Start(ctx, "gate.intercept",
		trace.WithAttributes(
			attribute.String("content.id", req.ContentID),
			attribute.String("content.type", req.ContentType.String()),
		))
	defer span.End()

	if req.ContentID == "" {
		return nil, errors.NewValidationError("MISSING_CONTENT_ID", "content ID is required")
	}
	if req.Content == "" {
		return nil, errors.NewValidationError("MISSING_CONTENT", "content is required")
	}
	if req.UserID == "" {
		return nil, errors.NewValidationError("MISSING_USER_ID", "user ID is required")
	}

	check := g.engine.Evaluate(ctx, req.Content, req.ContentType, req.UserID)

	claimRecords, claimResults, synthetic, err := g.validateClaims(req)
	if err != nil {
		return nil, err
	}
	if len(synthetic) > 0 {
		check = compliance.NewCheck(req.ContentType, req.Content, req.UserID,
			append(check.Results, synthetic...))
	}

	if err := g.store.SaveCheck(ctx, check); err != nil {
		return nil, err
	}
	for _, claim := range claimRecords {
		if err := g.store.SaveClaim(ctx, claim); err != nil {
			return nil, err
		}
	}

	result := &InterceptResult{
		Check:        check,
		ClaimResults: claimResults,
	}
	result.SuggestedContent, result.AppliedFixes = AutoFix(req.Content, check)

	if check.HasViolations() {
		if !req.BlockOnViolation {
			// Monitor mode: the violations are on record, the content
			// goes out anyway.
			result.Allowed = true
			g.metrics.Intercepts.WithLabelValues("flagged").Inc()
			span.SetAttributes(attribute.Bool("flagged", true))
			g.audit(ctx, req, domainaudit.EventComplianceCheck, "content_flagged", map[string]interface{}{
				"check_id":   check.ID.String(),
				"status":     check.Status.String(),
				"regulation": firstRegulation(check),
			})
			return result, nil
		}

		approval, err := g.block(ctx, req, check)
		if err != nil {
			return nil, err
		}
		result.Approval = approval
		g.metrics.Intercepts.WithLabelValues("blocked").Inc()
		span.SetAttributes(attribute.Bool("blocked", true))
		return result, nil
	}

	result.Allowed = true
	g.metrics.Intercepts.WithLabelValues("allowed").Inc()
	g.audit(ctx, req, domainaudit.EventComplianceCheck, "content_allowed", map[string]interface{}{
		"check_id": check.ID.String(),
		"status":   check.Status.String(),
	})
	return result, nil
}

// validateClaims runs claim substantiation over the explicit submissions,
// or over the whole content when it reads as a medical claim with none
// declared. Each invalid claim folds into one synthetic violation result;
// every submission is also recorded as a pending medical claim.
func (g *Gate) validateClaims(req InterceptRequest) ([]*compliance.MedicalClaim, []*compliance.ClaimValidationResult, []compliance.Result, error) {
	submissions := req.Claims
	if len(submissions) == 0 && ContainsMedicalLanguage(req.Content) {
		submissions = []ClaimSubmission{{Text: req.Content, Type: compliance.ClaimEfficacy}}
	}

	var records []*compliance.MedicalClaim
	var results []*compliance.ClaimValidationResult
	var synthetic []compliance.Result
	for _, submission := range submissions {
		claim, err := compliance.NewMedicalClaim(submission.Text, submission.Type, req.ProductName, submission.Evidence)
		if err != nil {
			return nil, nil, nil, errors.NewValidationError("INVALID_CLAIM", err.Error())
		}
		records = append(records, claim)

		vr := g.validator.ValidateClaim(submission.Text, submission.Type, req.ProductName, submission.Evidence)
		results = append(results, vr)
		if vr.IsValid {
			continue
		}
		evidence := make([]string, 0, len(vr.Issues))
		for _, issue := range vr.Issues {
			evidence = append(evidence, issue.Description)
		}
		recommendation := ""
		if len(vr.Recommendations) > 0 {
			recommendation = vr.Recommendations[0]
		}
		synthetic = append(synthetic, compliance.Result{
			RuleID:         uuid.New(),
			RuleName:       "medical_claim_substantiation",
			Category:       compliance.CategoryMedicalClaims,
			Severity:       compliance.SeverityViolation,
			Passed:         false,
			Evidence:       evidence,
			Recommendation: recommendation,
			Regulation:     "FDA 21 CFR 807, FTC Act Section 5",
		})
	}
	return records, results, synthetic, nil
}

func (g *Gate) block(ctx context.Context, req InterceptRequest, check *compliance.Check) (*compliance.Approval, error) {
	approval, err := compliance.NewApproval(req.ContentID, req.ContentType, check.ID)
	if err != nil {
		return nil, err
	}
	if err := g.store.SaveApproval(ctx, approval); err != nil {
		return nil, err
	}

	g.logger.Warn("content blocked pending review",
		zap.String("content_id", req.ContentID),
		zap.String("check_id", check.ID.String()),
		zap.String("approval_id", approval.ID.String()),
		zap.Any("failed_categories", check.FailedCategories()),
	)

	if g.notifier != nil {
		notification := auditsvc.Notification{
			RecipientIDs: g.reviewerIDs,
			Title:        "Content blocked pending compliance review",
			Message: fmt.Sprintf("%s content %s was blocked with %d failed rule(s)",
				req.ContentType, req.ContentID, len(check.FailedResults())),
			Payload: map[string]interface{}{
				"approval_id": approval.ID.String(),
				"check_id":    check.ID.String(),
			},
		}
		if err := g.notifier.Notify(ctx, notification); err != nil {
			g.logger.Warn("reviewer notification failed", zap.Error(err))
		}
	}

	g.audit(ctx, req, domainaudit.EventComplianceCheck, "content_blocked", map[string]interface{}{
		"check_id":    check.ID.String(),
		"approval_id": approval.ID.String(),
		"regulation":  firstRegulation(check),
	})
	return approval, nil
}

// Review applies a reviewer decision to a pending approval. The terminal
// status is set exactly once; approval releases the content for dispatch.
func (g *Gate) Review(ctx context.Context, approvalID uuid.UUID, decision compliance.ApprovalStatus, reviewerID, notes string) (*compliance.Approval, error) {
	ctx, span := g.tracer.Start(ctx, "gate.review",
		trace.WithAttributes(attribute.String("approval.id", approvalID.String())))
	defer span.End()

	approval, err := g.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if err := approval.Resolve(decision, reviewerID, notes); err != nil {
		return nil, err
	}
	if err := g.store.UpdateApproval(ctx, approval); err != nil {
		return nil, err
	}

	if decision == compliance.ApprovalApproved {
		if err := g.releases.SetReleased(ctx, approval.ContentID, reviewerID); err != nil {
			// The approval stands; dispatch will not see the release until
			// this is repaired.
			g.logger.Error("failed to mark content released",
				zap.String("content_id", approval.ContentID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	g.metrics.Reviews.WithLabelValues(decision.String()).Inc()
	g.logger.Info("approval reviewed",
		zap.String("approval_id", approval.ID.String()),
		zap.String("decision", decision.String()),
		zap.String("reviewer_id", reviewerID),
	)

	if g.auditor != nil {
		_, err := g.auditor.LogEvent(ctx, auditsvc.LogInput{
			Type:       domainaudit.EventApprovalWorkflow,
			EntityType: "compliance_approval",
			EntityID:   approval.ID.String(),
			Action:     "approval_review",
			ActorID:    reviewerID,
			Metadata: map[string]interface{}{
				"decision":   decision.String(),
				"content_id": approval.ContentID,
			},
		})
		if err != nil {
			g.logger.Warn("failed to audit approval review", zap.Error(err))
		}
	}
	return approval, nil
}

// EscalateStale re-notifies reviewers about pending approvals older than
// the escalation window. No approval is auto-rejected.
func (g *Gate) EscalateStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-g.escalateAfter)
	stale, err := g.store.ListPendingApprovalsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, approval := range stale {
		if g.notifier == nil {
			break
		}
		notification := auditsvc.Notification{
			RecipientIDs: g.reviewerIDs,
			Title:        "Compliance approval awaiting review",
			Message: fmt.Sprintf("Approval %s for content %s has been pending since %s",
				approval.ID, approval.ContentID, approval.CreatedAt.Format(time.RFC3339)),
			Payload: map[string]interface{}{
				"approval_id": approval.ID.String(),
			},
		}
		if err := g.notifier.Notify(ctx, notification); err != nil {
			g.logger.Warn("escalation notification failed",
				zap.String("approval_id", approval.ID.String()),
				zap.Error(err),
			)
			continue
		}
		escalated++
		g.metrics.Escalations.Inc()
	}
	return escalated, nil
}

// audit records one gate decision. Caller metadata from the request is
// merged in under the gate's own keys, which win on collision.
func (g *Gate) audit(ctx context.Context, req InterceptRequest, eventType domainaudit.EventType, action string, metadata map[string]interface{}) {
	if g.auditor == nil {
		return
	}
	merged := make(map[string]interface{}, len(req.Metadata)+len(metadata))
	for k, v := range req.Metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	_, err := g.auditor.LogEvent(ctx, auditsvc.LogInput{
		Type:       eventType,
		EntityType: "marketing_content",
		EntityID:   req.ContentID,
		Action:     action,
		ActorID:    req.UserID,
		SourceAddr: req.SourceAddr,
		Metadata:   merged,
	})
	if err != nil {
		g.logger.Warn("failed to audit gate decision",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func firstRegulation(check *compliance.Check) string {
	for _, result := range check.FailedResults() {
		if result.Regulation != "" {
			return result.Regulation
		}
	}
	return ""
}
