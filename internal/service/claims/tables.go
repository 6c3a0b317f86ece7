package claims

import (
	"regexp"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
)

// riskTag names the class of risky language a pattern detects.
type riskTag string

const (
	tagAbsolute    riskTag = "absolute_claim"
	tagCure        riskTag = "cure_claim"
	tagSuperiority riskTag = "superiority_claim"
	tagSafety      riskTag = "safety_claim"
	tagApproval    riskTag = "approval_claim"
	tagHyperbole   riskTag = "hyperbole"
	tagProven      riskTag = "unproven_proven"
	tagEndorsement riskTag = "unverified_endorsement"
)

type riskPattern struct {
	expr        *regexp.Regexp
	tag         riskTag
	description string
}

// riskPatterns is the fixed risky-language table. Cure and approval claims
// carry critical severity; the rest are major.
var riskPatterns = []riskPattern{
	{
		expr:        regexp.MustCompile(`(?i)\b(?:always|never fails|every patient|guaranteed)\b|100%`),
		tag:         tagAbsolute,
		description: "absolute language cannot be substantiated",
	},
	{
		expr:        regexp.MustCompile(`(?i)\bcure[sd]?\b|\beliminates? (?:the )?(?:disease|condition|pain)\b`),
		tag:         tagCure,
		description: "cure claims require disease-claim level authorization",
	},
	{
		expr:        regexp.MustCompile(`(?i)\b(?:superior to|better than|outperforms|the only)\b`),
		tag:         tagSuperiority,
		description: "superiority claims require head-to-head evidence",
	},
	{
		expr:        regexp.MustCompile(`(?i)\b(?:completely safe|no side effects|risk[- ]free|harmless)\b`),
		tag:         tagSafety,
		description: "unqualified safety claims misstate residual risk",
	},
	{
		expr:        regexp.MustCompile(`(?i)\bFDA[- ]approved\b`),
		tag:         tagApproval,
		description: "cleared devices must not be described as approved",
	},
	{
		expr:        regexp.MustCompile(`(?i)\b(?:miracle|miraculous|revolutionary|breakthrough|game[- ]chang(?:er|ing))\b`),
		tag:         tagHyperbole,
		description: "hyperbolic language overstates expected benefit",
	},
	{
		expr:        regexp.MustCompile(`(?i)\b(?:clinically proven|scientifically proven|proven to)\b`),
		tag:         tagProven,
		description: "'proven' language requires well-controlled study support",
	},
	{
		expr:        regexp.MustCompile(`(?i)\b(?:doctors recommend|physicians prefer|experts agree)\b`),
		tag:         tagEndorsement,
		description: "endorsement claims require verifiable survey evidence",
	},
}

func (t riskTag) critical() bool {
	return t == tagCure || t == tagApproval
}

// evidenceRequirements specifies what substantiation a claim type needs:
// a minimum count of qualifying documents, which evidence types qualify,
// and content elements that must appear in the evidence key findings.
type evidenceRequirements struct {
	minDocuments     int
	acceptableTypes  []compliance.EvidenceType
	requiredElements []string
}

var requirementsByClaimType = map[compliance.ClaimType]evidenceRequirements{
	compliance.ClaimEfficacy: {
		minDocuments:     2,
		acceptableTypes:  []compliance.EvidenceType{compliance.EvidenceClinicalStudy, compliance.EvidencePeerReview},
		requiredElements: []string{"sample size", "statistical significance"},
	},
	compliance.ClaimSafety: {
		minDocuments:     2,
		acceptableTypes:  []compliance.EvidenceType{compliance.EvidenceClinicalStudy, compliance.EvidenceRegulatoryClearance},
		requiredElements: []string{"adverse events", "sample size"},
	},
	compliance.ClaimComparative: {
		minDocuments:     1,
		acceptableTypes:  []compliance.EvidenceType{compliance.EvidenceClinicalStudy},
		requiredElements: []string{"head_to_head"},
	},
	compliance.ClaimEconomic: {
		minDocuments:     1,
		acceptableTypes:  []compliance.EvidenceType{compliance.EvidenceInternalData, compliance.EvidencePeerReview},
		requiredElements: []string{"cost analysis"},
	},
	compliance.ClaimQualityOfLife: {
		minDocuments: 1,
		acceptableTypes: []compliance.EvidenceType{
			compliance.EvidenceClinicalStudy, compliance.EvidencePeerReview, compliance.EvidenceExpertOpinion,
		},
		requiredElements: []string{"patient reported"},
	},
}

// Claim-keyword extraction patterns: medical terms, percentages, and
// comparison words that each need evidence support.
var claimKeywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+(?:\.\d+)?%`),
	regexp.MustCompile(`(?i)\b(?:recovery|pain|inflammation|mobility|healing|remission|symptom|dosage|efficacy|outcomes?)\b`),
	regexp.MustCompile(`(?i)\b(?:reduces?|improves?|increases?|decreases?|shortens?|faster|slower)\b`),
}

// qualifierPattern detects language that tempers a claim when the backing
// evidence carries limitations.
var qualifierPattern = regexp.MustCompile(`(?i)\b(?:may|might|can help|could|designed to|intended to|in some patients)\b`)

// reimbursementPattern flags claim text that touches federal reimbursement
// programs, which draws anti-fraud scrutiny.
var reimbursementPattern = regexp.MustCompile(`(?i)\b(?:medicare|medicaid|reimburs\w*|insurance|copay)\b`)

const (
	minAverageRelevance = 0.7

	criticalPenalty = 30
	majorPenalty    = 20
	minorPenalty    = 10

	evidenceBonusPerDoc = 5
	evidenceBonusCap    = 20
	relevanceBonusMax   = 10
)

var baselineRecommendations = []string{
	"Retain substantiation documentation for the life of the claim plus the applicable retention period",
	"Route final claim language through regulatory affairs before first commercial use",
}

var recommendationsByIssue = map[compliance.IssueType]string{
	compliance.IssueRiskyLanguage:        "Add qualifying language or remove the flagged phrasing",
	compliance.IssueUnsupported:          "Obtain additional clinical evidence supporting the claim",
	compliance.IssueInsufficientEvidence: "Obtain additional clinical evidence supporting the claim",
	compliance.IssueMissingElement:       "Ensure supporting studies document the required content elements",
	compliance.IssueLowRelevance:         "Replace low-relevance evidence with studies directly addressing the claim",
	compliance.IssueOverstated:           "Temper the claim to reflect the limitations noted in the evidence",
}
