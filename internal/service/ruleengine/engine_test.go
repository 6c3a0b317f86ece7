package ruleengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
	"github.com/meridianmed/marketing-compliance-backend/internal/service/ruleengine"
)

func findResult(t *testing.T, check *compliance.Check, ruleName string) compliance.Result {
	t.Helper()
	for _, r := range check.Results {
		if r.RuleName == ruleName {
			return r
		}
	}
	t.Fatalf("rule %q not found in check results", ruleName)
	return compliance.Result{}
}

func TestEvaluate_UnsubstantiatedClaims(t *testing.T) {
	engine := ruleengine.NewDefaultEngine(zap.NewNop())

	check := engine.Evaluate(context.Background(),
		"This treatment is 100% guaranteed to cure your condition",
		compliance.ContentEmail, "tester")

	assert.Equal(t, compliance.StatusViolations, check.Status)

	result := findResult(t, check, "unsubstantiated_claims")
	assert.False(t, result.Passed)
	assert.Equal(t, compliance.SeverityViolation, result.Severity)
	assert.Contains(t, result.Evidence, "100%")
	assert.Contains(t, result.Evidence, "guaranteed")
	assert.Contains(t, result.Evidence, "cure")
}

func TestEvaluate_RiskyKeywordsAlwaysFlagged(t *testing.T) {
	engine := ruleengine.NewDefaultEngine(zap.NewNop())

	for _, keyword := range []string{"guaranteed", "100%", "cure", "miraculous"} {
		t.Run(keyword, func(t *testing.T) {
			check := engine.Evaluate(context.Background(),
				"Our device is "+keyword+" effective",
				compliance.ContentMarketingMaterial, "tester")

			result := findResult(t, check, "unsubstantiated_claims")
			assert.False(t, result.Passed, "keyword %q must fail the advertising rule", keyword)
			assert.Equal(t, compliance.CategoryAdvertising, result.Category)
		})
	}
}

func TestEvaluate_CompliantContent(t *testing.T) {
	engine := ruleengine.NewDefaultEngine(zap.NewNop())

	content := "OrthoFlex may help reduce discomfort. Individual results may vary. " +
		"Consult your physician before use."
	check := engine.Evaluate(context.Background(), content, compliance.ContentEmail, "tester")

	assert.Equal(t, compliance.StatusCompliant, check.Status)
	for _, r := range check.Results {
		assert.True(t, r.Passed, "rule %q unexpectedly failed", r.RuleName)
	}
}

func TestEvaluate_MissingRequiredElements(t *testing.T) {
	engine := ruleengine.NewDefaultEngine(zap.NewNop())

	check := engine.Evaluate(context.Background(),
		"OrthoFlex may help reduce discomfort.",
		compliance.ContentEmail, "tester")

	assert.Equal(t, compliance.StatusWarnings, check.Status)

	result := findResult(t, check, "fair_balance_disclosure")
	assert.False(t, result.Passed)
	assert.Equal(t, []string{"individual results may vary"}, result.Evidence)
}

func TestEvaluate_InactiveRuleSkipped(t *testing.T) {
	matcher, err := compliance.NewKeywordMatcher([]string{"anything"})
	require.NoError(t, err)
	rule, err := compliance.NewRule("disabled", compliance.CategoryAdvertising,
		compliance.SeverityViolation, matcher, "test")
	require.NoError(t, err)
	rule.Active = false

	engine := ruleengine.NewEngine([]*compliance.Rule{rule}, zap.NewNop())
	check := engine.Evaluate(context.Background(), "anything goes", compliance.ContentSMS, "tester")

	assert.Empty(t, check.Results)
	assert.Equal(t, compliance.StatusCompliant, check.Status)
}

type panicMatcher struct{}

func (panicMatcher) Match(string) compliance.MatchOutcome { panic("bad matcher") }
func (panicMatcher) Kind() compliance.MatcherKind         { return compliance.MatcherPattern }

func TestEvaluate_FailIsolation(t *testing.T) {
	broken, err := compliance.NewRule("broken", compliance.CategoryAdvertising,
		compliance.SeverityViolation, panicMatcher{}, "test")
	require.NoError(t, err)

	keyword, err := compliance.NewKeywordMatcher([]string{"cure"})
	require.NoError(t, err)
	good, err := compliance.NewRule("good", compliance.CategoryMedicalClaims,
		compliance.SeverityViolation, keyword, "test")
	require.NoError(t, err)

	engine := ruleengine.NewEngine([]*compliance.Rule{broken, good}, zap.NewNop())
	check := engine.Evaluate(context.Background(), "we cure everything", compliance.ContentEmail, "tester")

	// The broken matcher fails closed; the good rule still evaluated.
	brokenResult := findResult(t, check, "broken")
	assert.True(t, brokenResult.Passed)

	goodResult := findResult(t, check, "good")
	assert.False(t, goodResult.Passed)
	assert.Equal(t, compliance.StatusViolations, check.Status)
}
