package ruleengine

import (
	"context"

	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
)

// Engine evaluates free-text content against a fixed rule table. It is pure
// and synchronous: rules are loaded once at construction and never mutated.
type Engine struct {
	rules  []*compliance.Rule
	logger *zap.Logger
}

// NewEngine constructs an engine from the supplied rules. Rules that failed
// to build (nil entries) were already dropped by the loader.
func NewEngine(rules []*compliance.Rule, logger *zap.Logger) *Engine {
	return &Engine{rules: rules, logger: logger}
}

// NewDefaultEngine constructs an engine with the built-in regulatory rule
// table. Malformed rule definitions fail closed: they are skipped with a
// logged warning instead of aborting startup.
func NewDefaultEngine(logger *zap.Logger) *Engine {
	return NewEngine(loadDefaultRules(logger), logger)
}

// Rules returns the loaded rule table.
func (e *Engine) Rules() []*compliance.Rule {
	return e.rules
}

// Evaluate applies every active rule to the content and aggregates the
// outcome. A single rule failure never aborts evaluation of the remaining
// rules, and matching is fail-closed: a rule that cannot match counts as
// passed.
func (e *Engine) Evaluate(ctx context.Context, content string, contentType compliance.ContentType, checkedBy string) *compliance.Check {
	results := make([]compliance.Result, 0, len(e.rules))

	for _, rule := range e.rules {
		if !rule.Active {
			continue
		}
		results = append(results, e.applyRule(rule, content))
	}

	check := compliance.NewCheck(contentType, content, checkedBy, results)

	e.logger.Debug("content evaluated",
		zap.String("check_id", check.ID.String()),
		zap.String("content_type", contentType.String()),
		zap.String("status", check.Status.String()),
		zap.Int("rules_applied", len(results)),
	)

	return check
}

func (e *Engine) applyRule(rule *compliance.Rule, content string) (result compliance.Result) {
	result = compliance.Result{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Category:   rule.Category,
		Severity:   rule.Severity,
		Passed:     true,
		Regulation: rule.Regulation,
	}

	// A panicking matcher is a configuration error; the rule passes and the
	// remaining rules still run.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("rule matcher panicked, treating as non-matching",
				zap.String("rule", rule.Name),
				zap.Any("panic", r),
			)
			result.Passed = true
			result.Evidence = nil
		}
	}()

	outcome := rule.Matcher.Match(content)
	if outcome.Failed {
		result.Passed = false
		result.Evidence = outcome.Evidence
		result.Recommendation = rule.Recommendation
	}
	return result
}
