// Package entity implements the combinatorial PII rule: a row is PII when
// at least two weak signals (person name, email, location) co-occur.
package entity

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/ner"
)

// MinSignals is the number of co-occurring signals that makes a row PII
const MinSignals = 2

// emailPattern requires a dotted domain with a 2-4 letter TLD, so it is
// stricter than the payment-handle rule.
var emailPattern = regexp.MustCompile(`\b[\w.\-]+@[\w.\-]+\.[A-Za-z]{2,4}\b`)

// Signals holds the three weak identifiers found in a text
type Signals struct {
	Name     bool `json:"name"`
	Email    bool `json:"email"`
	Location bool `json:"location"`
}

// Count returns how many signals are present (0-3)
func (s Signals) Count() int {
	n := 0
	for _, present := range []bool{s.Name, s.Email, s.Location} {
		if present {
			n++
		}
	}
	return n
}

// Result is the combinatorial classification of a text
type Result struct {
	Signals       Signals `json:"signals"`
	Combinatorial bool    `json:"combinatorial"`
}

// Classifier derives signals from an injected NER engine and the email pattern
type Classifier struct {
	recognizer ner.Recognizer
	logger     *zap.Logger
}

// New creates a classifier around the given recognizer
func New(recognizer ner.Recognizer, logger *zap.Logger) *Classifier {
	return &Classifier{
		recognizer: recognizer,
		logger:     logger,
	}
}

// Signals evaluates the three signals on text
func (c *Classifier) Signals(ctx context.Context, text string) (Signals, error) {
	entities, err := c.recognizer.Recognize(ctx, text)
	if err != nil {
		return Signals{}, fmt.Errorf("entity recognition failed: %w", err)
	}

	var s Signals
	for _, e := range entities {
		switch e.Label {
		case ner.LabelPerson:
			s.Name = true
		case ner.LabelGPE, ner.LabelLocation, ner.LabelFacility:
			s.Location = true
		}
	}
	s.Email = emailPattern.MatchString(text)

	return s, nil
}

// Classify applies the co-occurrence rule to text
func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	s, err := c.Signals(ctx, text)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Signals:       s,
		Combinatorial: s.Count() >= MinSignals,
	}

	c.logger.Debug("Entity signals evaluated",
		zap.Bool("name", s.Name),
		zap.Bool("email", s.Email),
		zap.Bool("location", s.Location),
		zap.Bool("combinatorial", result.Combinatorial))

	return result, nil
}
