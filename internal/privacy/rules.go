package privacy

import "regexp"

var (
	phonePattern         = regexp.MustCompile(`\b\d{10}\b`)
	nationalIDPattern    = regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)
	passportPattern      = regexp.MustCompile(`\b[A-Z]\d{7}\b`)
	paymentHandlePattern = regexp.MustCompile(`\b[\w.\-]+@\w+\b`)
)

// phoneMaskFill is a fixed-width mask, not length preserving
const phoneMaskFill = "XXXXX"

// maskPhone keeps the first two and last three digits of a phone number.
func maskPhone(match string) string {
	if len(match) < 5 {
		return phoneMaskFill
	}
	return match[:2] + phoneMaskFill + match[len(match)-3:]
}

// DefaultRules returns the standalone PII rules in redaction order.
//
// Redaction applies the rules left to right: the phone mask runs first,
// then the sentinel replacements for national ID, passport and payment
// handle. The order is part of the contract; every output of the list is
// stable under re-application of the whole list.
func DefaultRules() []PatternRule {
	return []PatternRule{
		{
			Name:    CategoryPhone,
			Pattern: phonePattern,
			Mask:    maskPhone,
		},
		{
			Name:        CategoryNationalID,
			Pattern:     nationalIDPattern,
			Replacement: SentinelToken,
		},
		{
			Name:        CategoryPassport,
			Pattern:     passportPattern,
			Replacement: SentinelToken,
		},
		{
			Name:        CategoryPaymentHandle,
			Pattern:     paymentHandlePattern,
			Replacement: SentinelToken,
		},
	}
}
