package privacy

import (
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/logger"
)

// Matcher handles standalone PII detection and redaction
type Matcher struct {
	rules  []PatternRule
	logger *logger.Logger
}

// NewMatcher creates a matcher over the default rule list
func NewMatcher(log *logger.Logger) *Matcher {
	return NewMatcherWithRules(DefaultRules(), log)
}

// NewMatcherWithRules creates a matcher over an explicit, ordered rule list
func NewMatcherWithRules(rules []PatternRule, log *logger.Logger) *Matcher {
	m := &Matcher{
		rules:  rules,
		logger: log.WithComponent("pattern_matcher"),
	}

	m.logger.Debug("Pattern matcher initialized", zap.Strings("rules", m.RuleNames()))

	return m
}

// Detect reports whether any rule occurs anywhere in text
func (m *Matcher) Detect(text string) bool {
	for _, rule := range m.rules {
		if rule.Pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Match runs every rule over text and reports per-category findings
func (m *Matcher) Match(text string) MatchResult {
	result := MatchResult{Findings: []Finding{}}

	for _, rule := range m.rules {
		matches := rule.Pattern.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		result.Matched = true
		result.Findings = append(result.Findings, Finding{
			Category: rule.Name,
			Count:    len(matches),
		})
	}

	if result.Matched {
		m.logger.Debug("Standalone PII matched", zap.Any("findings", result.Findings))
	}

	return result
}

// Redact applies every rule, in order, to a single value
func (m *Matcher) Redact(value string) string {
	for _, rule := range m.rules {
		value = rule.apply(value)
	}
	return value
}

// RedactAll redacts each value independently and returns a new slice
func (m *Matcher) RedactAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = m.Redact(v)
	}
	return out
}

// RuleNames returns the rule names in application order
func (m *Matcher) RuleNames() []string {
	names := make([]string, len(m.rules))
	for i, rule := range m.rules {
		names[i] = rule.Name
	}
	return names
}
