package ruleengine

import (
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
)

// ruleDefinition is the declarative form a rule is loaded from. Exactly one
// matcher field is set per definition.
type ruleDefinition struct {
	name             string
	category         compliance.RuleCategory
	severity         compliance.RuleSeverity
	regulation       string
	recommendation   string
	pattern          string
	keywords         []string
	requiredElements []string
}

// defaultRuleDefinitions is the built-in regulatory rule table, loaded once
// at startup. Rules are immutable afterwards.
var defaultRuleDefinitions = []ruleDefinition{
	{
		name:           "unsubstantiated_claims",
		category:       compliance.CategoryAdvertising,
		severity:       compliance.SeverityViolation,
		regulation:     "FTC Act Section 5",
		recommendation: "Remove absolute language or provide competent and reliable scientific evidence",
		pattern:        `\b(?:guaranteed|cure[sd]?|miracle|miraculous|breakthrough|revolutionary)\b|100%`,
	},
	{
		name:           "superiority_claims",
		category:       compliance.CategoryMedicalClaims,
		severity:       compliance.SeverityViolation,
		regulation:     "FDA 21 CFR 807.97",
		recommendation: "Comparative claims require head-to-head clinical evidence",
		pattern:        `\b(?:superior to|better than|outperforms|number one)\b|#1\b`,
	},
	{
		name:           "off_label_promotion",
		category:       compliance.CategoryOffLabel,
		severity:       compliance.SeverityViolation,
		regulation:     "FDCA Section 502",
		recommendation: "Promote only uses covered by the product's clearance",
		keywords:       []string{"off-label", "unapproved use", "not yet approved for"},
	},
	{
		name:           "approval_misrepresentation",
		category:       compliance.CategoryMedicalClaims,
		severity:       compliance.SeverityViolation,
		regulation:     "FDA 21 CFR 807.97",
		recommendation: "510(k)-cleared devices must not be described as FDA approved",
		pattern:        `\bFDA[- ]approved\b`,
	},
	{
		name:             "fair_balance_disclosure",
		category:         compliance.CategoryFairBalance,
		severity:         compliance.SeverityWarning,
		regulation:       "FDA 21 CFR 202.1",
		recommendation:   "Benefit claims must be balanced with risk and limitation disclosure",
		requiredElements: []string{"individual results may vary"},
	},
	{
		name:             "directions_for_use",
		category:         compliance.CategoryFairBalance,
		severity:         compliance.SeverityWarning,
		regulation:       "FDA 21 CFR 801.5",
		recommendation:   "Include adequate directions for use or a reference to them",
		requiredElements: []string{"consult your physician"},
	},
	{
		name:           "testimonial_disclosure",
		category:       compliance.CategoryAdvertising,
		severity:       compliance.SeverityWarning,
		regulation:     "FTC 16 CFR 255",
		recommendation: "Endorsements require typicality disclosure and material-connection statements",
		keywords:       []string{"doctors recommend", "clinically proven", "patients agree"},
	},
	{
		name:           "phi_in_marketing",
		category:       compliance.CategoryDataPrivacy,
		severity:       compliance.SeverityViolation,
		regulation:     "HIPAA 45 CFR 164.508",
		recommendation: "Remove identifiable patient information from marketing content",
		pattern:        `\b(patient [A-Z][a-z]+|DOB[: ]|SSN[: ]|\d{3}-\d{2}-\d{4})\b`,
	},
	{
		name:           "reimbursement_inducement",
		category:       compliance.CategoryDataPrivacy,
		severity:       compliance.SeverityWarning,
		regulation:     "Anti-Kickback Statute 42 USC 1320a-7b",
		recommendation: "Review reimbursement language with counsel before distribution",
		keywords:       []string{"medicare covered", "medicaid covered", "free for insurance holders", "waive your copay"},
	},
}

// loadDefaultRules compiles the declarative table into rules. A definition
// whose matcher cannot be built is skipped with a warning; evaluation remains
// fail-closed for everything that loaded.
func loadDefaultRules(logger *zap.Logger) []*compliance.Rule {
	rules := make([]*compliance.Rule, 0, len(defaultRuleDefinitions))

	for _, def := range defaultRuleDefinitions {
		matcher, err := buildMatcher(def)
		if err != nil {
			logger.Warn("skipping malformed rule definition",
				zap.String("rule", def.name),
				zap.Error(err),
			)
			continue
		}

		rule, err := compliance.NewRule(def.name, def.category, def.severity, matcher, def.regulation)
		if err != nil {
			logger.Warn("skipping invalid rule",
				zap.String("rule", def.name),
				zap.Error(err),
			)
			continue
		}
		rules = append(rules, rule.WithRecommendation(def.recommendation))
	}

	return rules
}

func buildMatcher(def ruleDefinition) (compliance.Matcher, error) {
	switch {
	case def.pattern != "":
		return compliance.NewPatternMatcher(def.pattern)
	case len(def.keywords) > 0:
		return compliance.NewKeywordMatcher(def.keywords)
	default:
		return compliance.NewRequiredElementsMatcher(def.requiredElements)
	}
}
