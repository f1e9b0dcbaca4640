package ner

import _ "embed"

//go:embed gazetteer.yaml
var defaultGazetteerYAML []byte

// DefaultGazetteerYAML returns the embedded default lexicon.
func DefaultGazetteerYAML() []byte { return defaultGazetteerYAML }
