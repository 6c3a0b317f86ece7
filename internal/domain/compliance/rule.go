package compliance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// RuleCategory classifies the regulatory concern a rule enforces.
type RuleCategory string

const (
	CategoryAdvertising   RuleCategory = "advertising"
	CategoryMedicalClaims RuleCategory = "medical_claims"
	CategoryOffLabel      RuleCategory = "off_label"
	CategoryFairBalance   RuleCategory = "fair_balance"
	CategoryDataPrivacy   RuleCategory = "data_privacy"
)

func (c RuleCategory) String() string {
	return string(c)
}

// RuleSeverity determines how a failed rule affects the overall check status.
type RuleSeverity string

const (
	SeverityViolation RuleSeverity = "violation"
	SeverityWarning   RuleSeverity = "warning"
	SeverityInfo      RuleSeverity = "info"
)

func (s RuleSeverity) String() string {
	return string(s)
}

// MatcherKind identifies the matcher variant carried by a rule.
type MatcherKind string

const (
	MatcherPattern          MatcherKind = "pattern"
	MatcherKeywordSet       MatcherKind = "keyword_set"
	MatcherRequiredElements MatcherKind = "required_elements"
)

// MatchOutcome is the result of applying a matcher to content.
// Evidence carries matched substrings, hit keywords, or missing phrases
// depending on the matcher variant.
type MatchOutcome struct {
	Failed   bool     `json:"failed"`
	Evidence []string `json:"evidence,omitempty"`
}

// Matcher is the tagged-union contract for rule matching. Each variant is
// independently testable and the engine treats them uniformly.
type Matcher interface {
	Match(content string) MatchOutcome
	Kind() MatcherKind
}

// PatternMatcher fails content on any regular-expression match.
type PatternMatcher struct {
	expr *regexp.Regexp
}

// NewPatternMatcher compiles the pattern case-insensitively. A compile error
// is a configuration error surfaced to the rule loader, not a runtime fault.
func NewPatternMatcher(pattern string) (*PatternMatcher, error) {
	expr, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid rule pattern %q: %w", pattern, err)
	}
	return &PatternMatcher{expr: expr}, nil
}

func (m *PatternMatcher) Match(content string) MatchOutcome {
	matches := m.expr.FindAllString(content, -1)
	if len(matches) == 0 {
		return MatchOutcome{}
	}
	return MatchOutcome{Failed: true, Evidence: dedupe(matches)}
}

func (m *PatternMatcher) Kind() MatcherKind {
	return MatcherPattern
}

// KeywordMatcher fails content when any keyword appears as a
// case-insensitive substring.
type KeywordMatcher struct {
	keywords []string
}

func NewKeywordMatcher(keywords []string) (*KeywordMatcher, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keyword matcher requires at least one keyword")
	}
	return &KeywordMatcher{keywords: keywords}, nil
}

func (m *KeywordMatcher) Match(content string) MatchOutcome {
	lower := strings.ToLower(content)
	var hits []string
	for _, kw := range m.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits = append(hits, kw)
		}
	}
	if len(hits) == 0 {
		return MatchOutcome{}
	}
	return MatchOutcome{Failed: true, Evidence: hits}
}

func (m *KeywordMatcher) Kind() MatcherKind {
	return MatcherKeywordSet
}

// RequiredElementsMatcher fails content when any required phrase is absent.
// Evidence lists the missing phrases.
type RequiredElementsMatcher struct {
	elements []string
}

func NewRequiredElementsMatcher(elements []string) (*RequiredElementsMatcher, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("required-elements matcher requires at least one element")
	}
	return &RequiredElementsMatcher{elements: elements}, nil
}

func (m *RequiredElementsMatcher) Match(content string) MatchOutcome {
	lower := strings.ToLower(content)
	var missing []string
	for _, el := range m.elements {
		if !strings.Contains(lower, strings.ToLower(el)) {
			missing = append(missing, el)
		}
	}
	if len(missing) == 0 {
		return MatchOutcome{}
	}
	return MatchOutcome{Failed: true, Evidence: missing}
}

func (m *RequiredElementsMatcher) Kind() MatcherKind {
	return MatcherRequiredElements
}

// Rule is an immutable compliance rule loaded at startup.
type Rule struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	Category       RuleCategory `json:"category"`
	Severity       RuleSeverity `json:"severity"`
	Matcher        Matcher      `json:"-"`
	Regulation     string       `json:"regulation"`
	Recommendation string       `json:"recommendation,omitempty"`
	Active         bool         `json:"active"`
}

// NewRule validates and constructs a rule. The matcher must already be
// constructed; a nil matcher is a configuration error.
func NewRule(name string, category RuleCategory, severity RuleSeverity, matcher Matcher, regulation string) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name cannot be empty")
	}
	if matcher == nil {
		return nil, fmt.Errorf("rule %q has no matcher", name)
	}
	switch severity {
	case SeverityViolation, SeverityWarning, SeverityInfo:
	default:
		return nil, fmt.Errorf("rule %q has invalid severity %q", name, severity)
	}
	switch category {
	case CategoryAdvertising, CategoryMedicalClaims, CategoryOffLabel, CategoryFairBalance, CategoryDataPrivacy:
	default:
		return nil, fmt.Errorf("rule %q has invalid category %q", name, category)
	}

	return &Rule{
		ID:         uuid.New(),
		Name:       name,
		Category:   category,
		Severity:   severity,
		Matcher:    matcher,
		Regulation: regulation,
		Active:     true,
	}, nil
}

// WithRecommendation attaches remediation guidance shown on failure.
func (r *Rule) WithRecommendation(text string) *Rule {
	r.Recommendation = text
	return r
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
