package gate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
	auditsvc "github.com/meridianmed/marketing-compliance-backend/internal/service/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/claims"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/gate"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/ruleengine"
)

type fakeComplianceStore struct {
	mu        sync.Mutex
	checks    []*compliance.Check
	claims    []*compliance.MedicalClaim
	approvals map[uuid.UUID]*compliance.Approval
}

func newFakeComplianceStore() *fakeComplianceStore {
	return &fakeComplianceStore{approvals: make(map[uuid.UUID]*compliance.Approval)}
}

func (s *fakeComplianceStore) SaveCheck(_ context.Context, check *compliance.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, check)
	return nil
}

func (s *fakeComplianceStore) SaveClaim(_ context.Context, claim *compliance.MedicalClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims = append(s.claims, claim)
	return nil
}

func (s *fakeComplianceStore) SaveApproval(_ context.Context, approval *compliance.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[approval.ID] = approval
	return nil
}

func (s *fakeComplianceStore) GetApproval(_ context.Context, id uuid.UUID) (*compliance.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	approval, ok := s.approvals[id]
	if !ok {
		return nil, errors.ErrApprovalNotFound
	}
	return approval, nil
}

func (s *fakeComplianceStore) UpdateApproval(_ context.Context, approval *compliance.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[approval.ID] = approval
	return nil
}

func (s *fakeComplianceStore) ListPendingApprovalsOlderThan(_ context.Context, cutoff time.Time) ([]*compliance.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []*compliance.Approval
	for _, approval := range s.approvals {
		if approval.Status == compliance.ApprovalPending && approval.CreatedAt.Before(cutoff) {
			stale = append(stale, approval)
		}
	}
	return stale, nil
}

func (s *fakeComplianceStore) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, approval := range s.approvals {
		if approval.Status == compliance.ApprovalPending {
			count++
		}
	}
	return count
}

type fakeReleaseStore struct {
	mu       sync.Mutex
	released map[string]string
}

func newFakeReleaseStore() *fakeReleaseStore {
	return &fakeReleaseStore{released: make(map[string]string)}
}

func (s *fakeReleaseStore) SetReleased(_ context.Context, contentID, releasedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released[contentID] = releasedBy
	return nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	actions []string
	inputs  []auditsvc.LogInput
}

func (a *fakeAuditor) LogEvent(_ context.Context, input auditsvc.LogInput) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, input.Action)
	a.inputs = append(a.inputs, input)
	return uuid.New(), nil
}

func (a *fakeAuditor) lastInput() auditsvc.LogInput {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputs[len(a.inputs)-1]
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []auditsvc.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification auditsvc.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

type gateFixture struct {
	gate     *gate.Gate
	store    *fakeComplianceStore
	releases *fakeReleaseStore
	auditor  *fakeAuditor
	notifier *fakeNotifier
}

func newGateFixture(t *testing.T, cfg gate.Config) *gateFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &gateFixture{
		store:    newFakeComplianceStore(),
		releases: newFakeReleaseStore(),
		auditor:  &fakeAuditor{},
		notifier: &fakeNotifier{},
	}
	f.gate = gate.NewGate(
		ruleengine.NewDefaultEngine(logger),
		claims.NewValidator(logger),
		f.store, f.releases, f.auditor, f.notifier, nil, logger, cfg,
	)
	return f
}

// Passes every default rule; "recovery" reads as medical language.
const compliantContent = "OrthoFlex may help support recovery. " +
	"Individual results may vary. Consult your physician before use."

func strongEvidence() []compliance.EvidenceDocument {
	return []compliance.EvidenceDocument{
		{
			Type:      compliance.EvidenceClinicalStudy,
			Relevance: 0.9,
			KeyFindings: []string{
				"sample size of 412 patients",
				"statistical significance p<0.01",
				"reduces discomfort in treated cohort",
			},
		},
		{
			Type:        compliance.EvidencePeerReview,
			Relevance:   0.85,
			KeyFindings: []string{"statistical significance replicated", "discomfort reduction confirmed"},
		},
	}
}

func TestIntercept_AllowsCompliantContent(t *testing.T) {
	f := newGateFixture(t, gate.Config{})

	result, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:   "c-1",
		ContentType: compliance.ContentEmail,
		Content: "Join our booth at the trade show. " +
			"Individual results may vary. Consult your physician before use.",
		UserID:           "user-1",
		BlockOnViolation: true,
	})
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Nil(t, result.Approval)
	assert.Equal(t, compliance.StatusCompliant, result.Check.Status)
	require.Len(t, f.store.checks, 1)
	assert.Contains(t, f.auditor.actions, "content_allowed")
}

func TestIntercept_BlocksViolationsWithOnePendingApproval(t *testing.T) {
	f := newGateFixture(t, gate.Config{ReviewerIDs: []string{"reviewer-1"}})

	result, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:        "c-2",
		ContentType:      compliance.ContentEmail,
		Content:          "This treatment is 100% guaranteed to cure your condition",
		UserID:           "user-1",
		BlockOnViolation: true,
	})
	require.NoError(t, err)

	assert.False(t, result.Allowed, "violations must never pass the gate")
	require.NotNil(t, result.Approval)
	assert.Equal(t, compliance.ApprovalPending, result.Approval.Status)
	assert.Equal(t, result.Check.ID, result.Approval.CheckID)
	assert.Equal(t, 1, f.store.pendingCount(), "exactly one pending approval per block")

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, []string{"reviewer-1"}, f.notifier.sent[0].RecipientIDs)
	assert.Contains(t, f.auditor.actions, "content_blocked")
}

func TestIntercept_SuggestsWhitelistedFix(t *testing.T) {
	f := newGateFixture(t, gate.Config{})

	result, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:        "c-3",
		ContentType:      compliance.ContentEmail,
		Content:          "This treatment is guaranteed to cure your condition",
		UserID:           "user-1",
		BlockOnViolation: true,
	})
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.NotEqual(t, "This treatment is guaranteed to cure your condition", result.SuggestedContent)
	assert.Contains(t, result.AppliedFixes, "soften_unsubstantiated_wording")
}

func TestIntercept_MedicalLanguageRequiresSubstantiation(t *testing.T) {
	f := newGateFixture(t, gate.Config{})

	// Passes every rule, but reads as a medical claim with no evidence.
	result, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:        "c-4",
		ContentType:      compliance.ContentEmail,
		Content:          compliantContent,
		UserID:           "user-1",
		ProductName:      "OrthoFlex",
		BlockOnViolation: true,
	})
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	require.NotEmpty(t, result.ClaimResults)
	assert.False(t, result.ClaimResults[0].IsValid)

	foundSynthetic := false
	for _, r := range result.Check.Results {
		if r.RuleName == "medical_claim_substantiation" {
			foundSynthetic = true
			assert.Equal(t, compliance.SeverityViolation, r.Severity)
			assert.False(t, r.Passed)
		}
	}
	assert.True(t, foundSynthetic, "invalid claim must fold into a failing result")
}

func TestIntercept_SubstantiatedClaimPasses(t *testing.T) {
	f := newGateFixture(t, gate.Config{})

	result, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:        "c-5",
		ContentType:      compliance.ContentEmail,
		Content:          compliantContent,
		UserID:           "user-1",
		ProductName:      "OrthoFlex",
		BlockOnViolation: true,
		Claims: []gate.ClaimSubmission{{
			Text:     "OrthoFlex may help reduce discomfort",
			Type:     compliance.ClaimEfficacy,
			Evidence: strongEvidence(),
		}},
	})
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	require.Len(t, result.ClaimResults, 1)
	assert.True(t, result.ClaimResults[0].IsValid)

	require.Len(t, f.store.claims, 1, "submitted claim must be recorded")
	assert.Equal(t, compliance.SubstantiationPending, f.store.claims[0].Substantiation)
}

func TestIntercept_MonitorModeRecordsWithoutBlocking(t *testing.T) {
	f := newGateFixture(t, gate.Config{ReviewerIDs: []string{"reviewer-1"}})

	result, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:   "c-11",
		ContentType: compliance.ContentEmail,
		Content:     "This treatment is 100% guaranteed to cure your condition",
		UserID:      "user-1",
		// BlockOnViolation off: monitor only.
	})
	require.NoError(t, err)

	assert.True(t, result.Allowed, "monitor mode lets flagged content through")
	assert.Nil(t, result.Approval)
	assert.Equal(t, compliance.StatusViolations, result.Check.Status)

	require.Len(t, f.store.checks, 1, "the failing check is still recorded")
	assert.Equal(t, 0, f.store.pendingCount())
	assert.Empty(t, f.notifier.sent)
	assert.Contains(t, f.auditor.actions, "content_flagged")
	assert.NotContains(t, f.auditor.actions, "content_blocked")
}

func TestIntercept_RequestMetadataCarriedToAudit(t *testing.T) {
	f := newGateFixture(t, gate.Config{})

	_, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:   "c-12",
		ContentType: compliance.ContentEmail,
		Content: "Join our booth at the trade show. " +
			"Individual results may vary. Consult your physician before use.",
		UserID:           "user-1",
		BlockOnViolation: true,
		Metadata:         map[string]interface{}{"campaign_id": "spring-launch"},
	})
	require.NoError(t, err)

	logged := f.auditor.lastInput()
	assert.Equal(t, "content_allowed", logged.Action)
	assert.Equal(t, "spring-launch", logged.Metadata["campaign_id"])
	assert.NotEmpty(t, logged.Metadata["check_id"], "gate keys survive alongside caller metadata")
}

func TestIntercept_RejectsMissingFields(t *testing.T) {
	f := newGateFixture(t, gate.Config{})

	_, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentType: compliance.ContentEmail,
		Content:     "hello",
		UserID:      "user-1",
	})
	require.Error(t, err)
}

func blockContent(t *testing.T, f *gateFixture, contentID string) *compliance.Approval {
	t.Helper()
	result, err := f.gate.Intercept(context.Background(), gate.InterceptRequest{
		ContentID:        contentID,
		ContentType:      compliance.ContentEmail,
		Content:          "This treatment is 100% guaranteed to cure your condition",
		UserID:           "user-1",
		BlockOnViolation: true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Approval)
	return result.Approval
}

func TestReview_ApprovalReleasesContent(t *testing.T) {
	f := newGateFixture(t, gate.Config{})
	approval := blockContent(t, f, "c-6")

	reviewed, err := f.gate.Review(context.Background(), approval.ID,
		compliance.ApprovalApproved, "reviewer-1", "acceptable with context")
	require.NoError(t, err)

	assert.Equal(t, compliance.ApprovalApproved, reviewed.Status)
	assert.Equal(t, "reviewer-1", f.releases.released["c-6"])
	assert.Contains(t, f.auditor.actions, "approval_review")
}

func TestReview_RejectionDoesNotRelease(t *testing.T) {
	f := newGateFixture(t, gate.Config{})
	approval := blockContent(t, f, "c-7")

	_, err := f.gate.Review(context.Background(), approval.ID,
		compliance.ApprovalRejected, "reviewer-1", "unsubstantiated")
	require.NoError(t, err)

	_, released := f.releases.released["c-7"]
	assert.False(t, released)
}

func TestReview_SecondDecisionFails(t *testing.T) {
	f := newGateFixture(t, gate.Config{})
	approval := blockContent(t, f, "c-8")

	_, err := f.gate.Review(context.Background(), approval.ID,
		compliance.ApprovalApproved, "reviewer-1", "")
	require.NoError(t, err)

	_, err = f.gate.Review(context.Background(), approval.ID,
		compliance.ApprovalRejected, "reviewer-2", "changed my mind")
	require.ErrorIs(t, err, errors.ErrApprovalAlreadyFinal)

	stored, err := f.store.GetApproval(context.Background(), approval.ID)
	require.NoError(t, err)
	assert.Equal(t, compliance.ApprovalApproved, stored.Status, "first decision stands")
}

func TestReview_UnknownApproval(t *testing.T) {
	f := newGateFixture(t, gate.Config{})

	_, err := f.gate.Review(context.Background(), uuid.New(),
		compliance.ApprovalApproved, "reviewer-1", "")
	require.Error(t, err)
}

func TestEscalateStale_ReNotifiesOldPending(t *testing.T) {
	f := newGateFixture(t, gate.Config{
		ReviewerIDs:   []string{"reviewer-1"},
		EscalateAfter: time.Hour,
	})

	stale := blockContent(t, f, "c-9")
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	blockContent(t, f, "c-10") // fresh, not escalated

	sentBefore := len(f.notifier.sent)
	escalated, err := f.gate.EscalateStale(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, escalated)
	require.Len(t, f.notifier.sent, sentBefore+1)
	assert.Equal(t, stale.ID.String(), f.notifier.sent[sentBefore].Payload["approval_id"])
}
