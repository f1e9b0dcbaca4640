package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPConfig configures the NER sidecar client
type HTTPConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables throttling
	Burst     int
}

// HTTPRecognizer calls a spaCy-style NER sidecar's /ents endpoint.
// Every failure is returned to the caller.
type HTTPRecognizer struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type entsRequest struct {
	Text string `json:"text"`
}

type entsResponse struct {
	Ents []Entity `json:"ents"`
}

// NewHTTPRecognizer creates a client pointing at the given base URL
// (e.g. "http://ner:8001").
func NewHTTPRecognizer(cfg HTTPConfig, logger *zap.Logger) *HTTPRecognizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := &HTTPRecognizer{
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/ents",
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger.Info("HTTP NER recognizer initialized",
		zap.String("url", r.url),
		zap.Duration("timeout", timeout),
		zap.Float64("rate_limit", cfg.RateLimit))

	return r
}

// Recognize sends text to the sidecar and returns its entity spans
func (r *HTTPRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ner: rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(entsRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("ner: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result entsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	r.logger.Debug("NER sidecar responded",
		zap.Int("entities", len(result.Ents)),
		zap.Duration("duration", time.Since(start)))

	return result.Ents, nil
}

// Fingerprint identifies the sidecar endpoint
func (r *HTTPRecognizer) Fingerprint() string {
	return BackendHTTP + "-" + shortHash(BackendHTTP, r.url)
}
