package privacy

import "regexp"

// SentinelToken replaces a fully redacted match
const SentinelToken = "[REDACTED_PII]"

// Category names for standalone PII
const (
	CategoryPhone         = "phone"
	CategoryNationalID    = "aadhaar"
	CategoryPassport      = "passport"
	CategoryPaymentHandle = "upi"
)

// PatternRule is a named pattern with its redaction strategy.
// Exactly one of Mask or Replacement is used: Mask when non-nil.
type PatternRule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	Mask        func(match string) string
}

// apply runs the rule's redaction over every non-overlapping match in value
func (r PatternRule) apply(value string) string {
	if r.Mask != nil {
		return r.Pattern.ReplaceAllStringFunc(value, r.Mask)
	}
	return r.Pattern.ReplaceAllLiteralString(value, r.Replacement)
}

// Finding records how often a category matched
type Finding struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// MatchResult is the standalone detection outcome for one text
type MatchResult struct {
	Matched  bool      `json:"matched"`
	Findings []Finding `json:"findings"`
}

// Categories returns the names of the matched categories in rule order
func (m MatchResult) Categories() []string {
	names := make([]string, 0, len(m.Findings))
	for _, f := range m.Findings {
		names = append(names, f.Category)
	}
	return names
}
