package ner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
)

// Backend names accepted in configuration
const (
	BackendGazetteer = "gazetteer"
	BackendHTTP      = "http"
)

// New creates the configured Recognizer. It is built once per run and
// injected into the entity classifier.
func New(cfg config.NERConfig, logger *zap.Logger) (Recognizer, error) {
	switch cfg.Backend {
	case BackendGazetteer, "":
		var (
			g   *Gazetteer
			err error
		)
		if cfg.GazetteerPath == "" {
			g, err = NewDefaultGazetteer(logger)
		} else {
			var gf *GazetteerFile
			if gf, err = LoadGazetteerFile(cfg.GazetteerPath); err == nil {
				g, err = NewGazetteer(gf, logger)
			}
		}
		if err != nil {
			return nil, err
		}
		return g, nil
	case BackendHTTP:
		return NewHTTPRecognizer(HTTPConfig{
			BaseURL:   cfg.URL,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown ner backend: %s", cfg.Backend)
	}
}
