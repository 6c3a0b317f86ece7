package gate

import (
	"regexp"
	"strings"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/compliance"
)

// The auto-fix whitelist. Only these four remediations may be applied
// automatically; everything else requires a human edit.
const (
	fixDirections       = "append_directions_for_use"
	fixFairBalance      = "append_fair_balance"
	fixSoftenWording    = "soften_unsubstantiated_wording"
	fixClearanceWording = "correct_clearance_wording"
)

const (
	directionsStatement  = " Consult your physician before use."
	fairBalanceStatement = " Individual results may vary."
)

type wordSwap struct {
	expr        *regexp.Regexp
	replacement string
}

// Softening substitutions for unsubstantiated absolute language. Fixed
// list; anything not covered stays for the reviewer.
var softeningSwaps = []wordSwap{
	{regexp.MustCompile(`(?i)\bguaranteed to\b`), "intended to"},
	{regexp.MustCompile(`(?i)\bguaranteed\b`), "designed"},
	{regexp.MustCompile(`(?i)\bcures\b`), "treats"},
	{regexp.MustCompile(`(?i)\bcured\b`), "treated"},
	{regexp.MustCompile(`(?i)\bcure\b`), "treat"},
	{regexp.MustCompile(`(?i)\bmiraculous\b|\bmiracle\b`), "innovative"},
	// Swallow the preceding whitespace too, so mid-sentence and trailing
	// occurrences both come out clean.
	{regexp.MustCompile(`\s*\b100%`), ""},
}

var approvalWording = regexp.MustCompile(`(?i)\bFDA[- ]approved\b`)

// AutoFix applies the whitelisted remediations that match the check's
// failed rules and returns the revised content plus the names of the fixes
// applied. Content with no whitelisted failures comes back unchanged with
// a nil fix list; AutoFix never touches anything outside the whitelist.
func AutoFix(content string, check *compliance.Check) (string, []string) {
	failed := make(map[string]struct{})
	for _, result := range check.FailedResults() {
		failed[result.RuleName] = struct{}{}
	}

	fixed := content
	var applied []string

	if _, ok := failed["unsubstantiated_claims"]; ok {
		before := fixed
		for _, swap := range softeningSwaps {
			fixed = swap.expr.ReplaceAllString(fixed, swap.replacement)
		}
		fixed = strings.TrimSpace(fixed)
		if fixed != before {
			applied = append(applied, fixSoftenWording)
		}
	}

	if _, ok := failed["approval_misrepresentation"]; ok {
		if approvalWording.MatchString(fixed) {
			fixed = approvalWording.ReplaceAllString(fixed, "FDA-cleared")
			applied = append(applied, fixClearanceWording)
		}
	}

	if _, ok := failed["directions_for_use"]; ok {
		fixed = strings.TrimRight(fixed, " ") + directionsStatement
		applied = append(applied, fixDirections)
	}

	if _, ok := failed["fair_balance_disclosure"]; ok {
		fixed = strings.TrimRight(fixed, " ") + fairBalanceStatement
		applied = append(applied, fixFairBalance)
	}

	return fixed, applied
}
