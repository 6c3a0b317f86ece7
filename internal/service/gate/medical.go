package gate

import "regexp"

// medicalLanguage detects content that makes medical claims and therefore
// needs claim substantiation on top of the rule evaluation. Deliberately
// broad: a false positive costs one validator pass, a false negative skips
// substantiation entirely.
var medicalLanguage = regexp.MustCompile(`(?i)\b(?:treat(?:s|ed|ment)?|cure[sd]?|heal(?:s|ing)?|clinical(?:ly)?|patients?|diagnos\w*|symptoms?|therap\w*|recovery|pain|inflammation|efficacy|FDA|adverse|remission|dosage)\b`)

// ContainsMedicalLanguage reports whether the content warrants claim
// validation.
func ContainsMedicalLanguage(content string) bool {
	return medicalLanguage.MatchString(content)
}
