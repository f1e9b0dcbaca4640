// Package ner defines the named-entity recognition contract used by the
// entity classifier and provides its backends: an offline gazetteer and an
// HTTP client for a spaCy-style sidecar.
package ner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Label is an entity type tag as produced by spaCy-compatible engines
type Label string

const (
	LabelPerson   Label = "PERSON"
	LabelNORP     Label = "NORP"
	LabelFacility Label = "FAC"
	LabelOrg      Label = "ORG"
	LabelGPE      Label = "GPE"
	LabelLocation Label = "LOC"
)

// Entity is one labeled span of the input text. Offsets are byte offsets.
type Entity struct {
	Text  string `json:"text"`
	Label Label  `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Recognizer extracts labeled entity spans from text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// RecognizerFunc adapts a plain function to the Recognizer interface
type RecognizerFunc func(ctx context.Context, text string) ([]Entity, error)

// Recognize calls f(ctx, text)
func (f RecognizerFunc) Recognize(ctx context.Context, text string) ([]Entity, error) {
	return f(ctx, text)
}

// Fingerprinter is implemented by recognizers whose output is fully
// determined by their configuration. Equal fingerprints mean equal entities
// for equal text.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies the configuration behind r, or "anon" when r
// cannot describe itself
func Fingerprint(r Recognizer) string {
	if f, ok := r.(Fingerprinter); ok {
		if fp := f.Fingerprint(); fp != "" {
			return fp
		}
	}
	return "anon"
}

func shortHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
