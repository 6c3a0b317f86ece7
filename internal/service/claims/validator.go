package claims

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
)

// Validator scores a medical claim's substantiation. It is pure and
// stateless aside from the constant tables: no I/O, no persistence.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger}
}

// ValidateClaim runs the full substantiation pipeline: risky-pattern scan,
// evidence sufficiency, claim-evidence alignment, regulatory risk mapping,
// recommendations, and confidence scoring. The claim is valid iff no
// critical issue remains.
func (v *Validator) ValidateClaim(text string, claimType compliance.ClaimType, productName string, evidence []compliance.EvidenceDocument) *compliance.ClaimValidationResult {
	result := &compliance.ClaimValidationResult{}

	v.scanRiskyLanguage(text, result)
	v.checkEvidenceSufficiency(claimType, evidence, result)
	v.checkAlignment(text, evidence, result)
	v.mapRegulatoryRisks(text, result)
	v.buildRecommendations(result)

	result.ConfidenceScore = v.scoreConfidence(result, evidence)
	result.IsValid = result.CriticalIssueCount() == 0

	v.logger.Debug("claim validated",
		zap.String("claim_type", claimType.String()),
		zap.String("product", productName),
		zap.Bool("valid", result.IsValid),
		zap.Int("confidence", result.ConfidenceScore),
		zap.Int("issues", len(result.Issues)),
	)

	return result
}

func (v *Validator) scanRiskyLanguage(text string, result *compliance.ClaimValidationResult) {
	for _, rp := range riskPatterns {
		match := rp.expr.FindString(text)
		if match == "" {
			continue
		}
		severity := compliance.IssueMajor
		if rp.tag.critical() {
			severity = compliance.IssueCritical
		}
		result.Issues = append(result.Issues, compliance.ValidationIssue{
			Type:        compliance.IssueRiskyLanguage,
			Severity:    severity,
			Description: fmt.Sprintf("%s (%q): %s", rp.tag, match, rp.description),
		})
	}
}

func (v *Validator) checkEvidenceSufficiency(claimType compliance.ClaimType, evidence []compliance.EvidenceDocument, result *compliance.ClaimValidationResult) {
	reqs, ok := requirementsByClaimType[claimType]
	if !ok {
		// Unknown claim types fall back to the efficacy bar.
		reqs = requirementsByClaimType[compliance.ClaimEfficacy]
	}

	qualifying := 0
	for _, doc := range evidence {
		for _, accepted := range reqs.acceptableTypes {
			if doc.Type == accepted {
				qualifying++
				break
			}
		}
	}

	if qualifying < reqs.minDocuments {
		result.Issues = append(result.Issues, compliance.ValidationIssue{
			Type:     compliance.IssueUnsupported,
			Severity: compliance.IssueCritical,
			Description: fmt.Sprintf("%d qualifying evidence document(s) provided, %d required for %s claims",
				qualifying, reqs.minDocuments, claimType),
			EvidenceGap: fmt.Sprintf("need %d more qualifying document(s)", reqs.minDocuments-qualifying),
		})
	}

	findings := collectFindings(evidence)
	for _, element := range reqs.requiredElements {
		if !strings.Contains(findings, strings.ToLower(element)) {
			result.Issues = append(result.Issues, compliance.ValidationIssue{
				Type:        compliance.IssueMissingElement,
				Severity:    compliance.IssueMajor,
				Description: fmt.Sprintf("evidence does not document required element %q", element),
				EvidenceGap: element,
			})
		}
	}

	if len(evidence) > 0 {
		if avg := averageRelevance(evidence); avg < minAverageRelevance {
			result.Issues = append(result.Issues, compliance.ValidationIssue{
				Type:        compliance.IssueLowRelevance,
				Severity:    compliance.IssueMajor,
				Description: fmt.Sprintf("average evidence relevance %.2f is below the %.1f threshold", avg, minAverageRelevance),
			})
		}
	}
}

func (v *Validator) checkAlignment(text string, evidence []compliance.EvidenceDocument, result *compliance.ClaimValidationResult) {
	findings := collectFindings(evidence)

	for _, keyword := range extractClaimKeywords(text) {
		if !strings.Contains(findings, strings.ToLower(keyword)) {
			result.Issues = append(result.Issues, compliance.ValidationIssue{
				Type:        compliance.IssueUnsupported,
				Severity:    compliance.IssueMajor,
				Description: fmt.Sprintf("claim keyword %q is not supported by any evidence finding", keyword),
				EvidenceGap: keyword,
			})
		}
	}

	if hasLimitations(evidence) && !qualifierPattern.MatchString(text) {
		result.Issues = append(result.Issues, compliance.ValidationIssue{
			Type:        compliance.IssueOverstated,
			Severity:    compliance.IssueMinor,
			Description: "evidence notes limitations but the claim lacks qualifying language",
		})
	}
}

func (v *Validator) mapRegulatoryRisks(text string, result *compliance.ClaimValidationResult) {
	hasCritical := false
	hasMisleading := false
	for _, issue := range result.Issues {
		if issue.Severity == compliance.IssueCritical {
			hasCritical = true
		}
		if issue.Type == compliance.IssueRiskyLanguage || issue.Type == compliance.IssueOverstated {
			hasMisleading = true
		}
	}

	if hasCritical {
		result.Risks = append(result.Risks, compliance.RegulatoryRisk{
			Agency:          "FDA",
			Level:           compliance.RiskHigh,
			PotentialAction: "Warning letter or misbranding enforcement",
			Mitigation:      "Resolve all critical issues before distribution",
		})
	}
	if hasMisleading {
		result.Risks = append(result.Risks, compliance.RegulatoryRisk{
			Agency:          "FTC",
			Level:           compliance.RiskMedium,
			PotentialAction: "Deceptive advertising investigation",
			Mitigation:      "Substantiate or soften the flagged language",
		})
	}
	if reimbursementPattern.MatchString(text) {
		result.Risks = append(result.Risks, compliance.RegulatoryRisk{
			Agency:          "OIG",
			Level:           compliance.RiskMedium,
			PotentialAction: "Anti-kickback or false-claims inquiry",
			Mitigation:      "Have counsel review all reimbursement references",
		})
	}
}

func (v *Validator) buildRecommendations(result *compliance.ClaimValidationResult) {
	seen := make(map[string]struct{})
	for _, issue := range result.Issues {
		rec, ok := recommendationsByIssue[issue.Type]
		if !ok {
			continue
		}
		if _, dup := seen[rec]; dup {
			continue
		}
		seen[rec] = struct{}{}
		result.Recommendations = append(result.Recommendations, rec)
	}
	result.Recommendations = append(result.Recommendations, baselineRecommendations...)
}

// scoreConfidence starts at 100, subtracts per-issue penalties, then adds a
// capped bonus for evidence volume and a bonus scaled by average relevance.
// The result is always within [0,100].
func (v *Validator) scoreConfidence(result *compliance.ClaimValidationResult, evidence []compliance.EvidenceDocument) int {
	score := 100
	for _, issue := range result.Issues {
		switch issue.Severity {
		case compliance.IssueCritical:
			score -= criticalPenalty
		case compliance.IssueMajor:
			score -= majorPenalty
		case compliance.IssueMinor:
			score -= minorPenalty
		}
	}

	bonus := len(evidence) * evidenceBonusPerDoc
	if bonus > evidenceBonusCap {
		bonus = evidenceBonusCap
	}
	score += bonus

	if len(evidence) > 0 {
		score += int(averageRelevance(evidence) * relevanceBonusMax)
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func collectFindings(evidence []compliance.EvidenceDocument) string {
	var sb strings.Builder
	for _, doc := range evidence {
		for _, finding := range doc.KeyFindings {
			sb.WriteString(strings.ToLower(finding))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func averageRelevance(evidence []compliance.EvidenceDocument) float64 {
	if len(evidence) == 0 {
		return 0
	}
	total := 0.0
	for _, doc := range evidence {
		total += doc.Relevance
	}
	return total / float64(len(evidence))
}

func hasLimitations(evidence []compliance.EvidenceDocument) bool {
	for _, doc := range evidence {
		if len(doc.Limitations) > 0 {
			return true
		}
	}
	return false
}

func extractClaimKeywords(text string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, pattern := range claimKeywordPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			key := strings.ToLower(match)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keywords = append(keywords, match)
		}
	}
	return keywords
}
