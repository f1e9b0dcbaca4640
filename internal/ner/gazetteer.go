package ner

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// GazetteerFile is the on-disk lexicon format
type GazetteerFile struct {
	Entities map[Label][]string `yaml:"entities"`
}

type labelMatcher struct {
	label   Label
	pattern *regexp.Regexp
}

// Gazetteer is an offline Recognizer backed by a fixed lexicon.
// Terms match case-sensitively on word boundaries, longest term first.
type Gazetteer struct {
	matchers    []labelMatcher
	terms       int
	fingerprint string
	logger      *zap.Logger
}

var wordEdges = regexp.MustCompile(`^\w(.*\w)?$`)

// ParseGazetteer decodes a lexicon document
func ParseGazetteer(data []byte) (*GazetteerFile, error) {
	var gf GazetteerFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer: %w", err)
	}
	if len(gf.Entities) == 0 {
		return nil, fmt.Errorf("gazetteer defines no entities")
	}
	return &gf, nil
}

// LoadGazetteerFile reads a lexicon from disk
func LoadGazetteerFile(path string) (*GazetteerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer file: %w", err)
	}
	return ParseGazetteer(data)
}

// NewGazetteer compiles a lexicon into a Recognizer
func NewGazetteer(gf *GazetteerFile, logger *zap.Logger) (*Gazetteer, error) {
	labels := make([]Label, 0, len(gf.Entities))
	for label := range gf.Entities {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	g := &Gazetteer{logger: logger}
	for _, label := range labels {
		pattern, n, err := compileTerms(gf.Entities[label])
		if err != nil {
			return nil, fmt.Errorf("label %s: %w", label, err)
		}
		if pattern == nil {
			continue
		}
		g.matchers = append(g.matchers, labelMatcher{label: label, pattern: pattern})
		g.terms += n
	}

	parts := []string{BackendGazetteer}
	for _, m := range g.matchers {
		parts = append(parts, string(m.label), m.pattern.String())
	}
	g.fingerprint = BackendGazetteer + "-" + shortHash(parts...)

	logger.Info("Gazetteer recognizer initialized",
		zap.Int("labels", len(g.matchers)),
		zap.Int("terms", g.terms))

	return g, nil
}

// NewDefaultGazetteer compiles the embedded lexicon
func NewDefaultGazetteer(logger *zap.Logger) (*Gazetteer, error) {
	gf, err := ParseGazetteer(DefaultGazetteerYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded gazetteer: %w", err)
	}
	return NewGazetteer(gf, logger)
}

// compileTerms builds one alternation for a label, longest terms first so
// that "New Delhi" wins over "Delhi".
func compileTerms(terms []string) (*regexp.Regexp, int, error) {
	seen := make(map[string]bool, len(terms))
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" || seen[term] {
			continue
		}
		if !wordEdges.MatchString(term) {
			return nil, 0, fmt.Errorf("term %q must start and end with a word character", term)
		}
		seen[term] = true
		cleaned = append(cleaned, term)
	}
	if len(cleaned) == 0 {
		return nil, 0, nil
	}

	sort.Slice(cleaned, func(i, j int) bool {
		if len(cleaned[i]) != len(cleaned[j]) {
			return len(cleaned[i]) > len(cleaned[j])
		}
		return cleaned[i] < cleaned[j]
	})

	quoted := make([]string, len(cleaned))
	for i, term := range cleaned {
		quoted[i] = regexp.QuoteMeta(term)
	}

	pattern, err := regexp.Compile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, 0, err
	}
	return pattern, len(cleaned), nil
}

// Recognize returns every lexicon hit ordered by position
func (g *Gazetteer) Recognize(_ context.Context, text string) ([]Entity, error) {
	var entities []Entity
	for _, m := range g.matchers {
		for _, loc := range m.pattern.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Text:  text[loc[0]:loc[1]],
				Label: m.label,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})

	return entities, nil
}

// Terms returns the number of distinct terms compiled
func (g *Gazetteer) Terms() int {
	return g.terms
}

// Fingerprint hashes the compiled lexicon, so two gazetteers built from the
// same terms share cache entries and any lexicon change does not
func (g *Gazetteer) Fingerprint() string {
	return g.fingerprint
}
