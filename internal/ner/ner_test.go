package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
)

func labels(entities []Entity) []Label {
	out := make([]Label, len(entities))
	for i, e := range entities {
		out[i] = e.Label
	}
	return out
}

func TestDefaultGazetteer(t *testing.T) {
	g, err := NewDefaultGazetteer(zap.NewNop())
	require.NoError(t, err)
	assert.Greater(t, g.Terms(), 50)

	ctx := context.Background()

	t.Run("person and place", func(t *testing.T) {
		entities, err := g.Recognize(ctx, "Priya moved to Mumbai last year")
		require.NoError(t, err)
		require.Len(t, entities, 2)
		assert.Equal(t, Entity{Text: "Priya", Label: LabelPerson, Start: 0, End: 5}, entities[0])
		assert.Equal(t, Entity{Text: "Mumbai", Label: LabelGPE, Start: 15, End: 21}, entities[1])
	})

	t.Run("longest term wins", func(t *testing.T) {
		entities, err := g.Recognize(ctx, "flight to New Delhi")
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "New Delhi", entities[0].Text)
	})

	t.Run("whole words only", func(t *testing.T) {
		entities, err := g.Recognize(ctx, "Alicent went to Pune")
		require.NoError(t, err)
		assert.Equal(t, []Label{LabelGPE}, labels(entities))
	})

	t.Run("case sensitive", func(t *testing.T) {
		entities, err := g.Recognize(ctx, "mumbai priya")
		require.NoError(t, err)
		assert.Empty(t, entities)
	})

	t.Run("facility and location", func(t *testing.T) {
		entities, err := g.Recognize(ctx, "meet at Howrah Bridge near the Ganges")
		require.NoError(t, err)
		assert.Equal(t, []Label{LabelFacility, LabelLocation}, labels(entities))
	})

	t.Run("no entities", func(t *testing.T) {
		entities, err := g.Recognize(ctx, "just chatting")
		require.NoError(t, err)
		assert.Empty(t, entities)
	})
}

func TestGazetteerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entities:
  PERSON: [Zed, Zed, " "]
  GPE: [Atlantis]
`), 0o644))

	gf, err := LoadGazetteerFile(path)
	require.NoError(t, err)

	g, err := NewGazetteer(gf, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, g.Terms())

	entities, err := g.Recognize(context.Background(), "Zed from Atlantis")
	require.NoError(t, err)
	assert.Equal(t, []Label{LabelPerson, LabelGPE}, labels(entities))
}

func TestGazetteerRejectsBadInput(t *testing.T) {
	_, err := ParseGazetteer([]byte("entities: {}"))
	require.Error(t, err)

	_, err = ParseGazetteer([]byte("entities: [oops"))
	require.Error(t, err)

	gf, err := ParseGazetteer([]byte("entities:\n  FAC: [\"Dock 9.\"]\n"))
	require.NoError(t, err)
	_, err = NewGazetteer(gf, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word character")
}

func TestHTTPRecognizer(t *testing.T) {
	t.Run("decodes spans", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ents", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			var req entsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Alice lives in Paris", req.Text)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ents":[
				{"start":0,"end":5,"label":"PERSON","text":"Alice"},
				{"start":15,"end":20,"label":"GPE","text":"Paris"}]}`))
		}))
		defer server.Close()

		r := NewHTTPRecognizer(HTTPConfig{BaseURL: server.URL + "/"}, zap.NewNop())
		entities, err := r.Recognize(context.Background(), "Alice lives in Paris")
		require.NoError(t, err)
		assert.Equal(t, []Entity{
			{Text: "Alice", Label: LabelPerson, Start: 0, End: 5},
			{Text: "Paris", Label: LabelGPE, Start: 15, End: 20},
		}, entities)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		r := NewHTTPRecognizer(HTTPConfig{BaseURL: server.URL}, zap.NewNop())
		_, err := r.Recognize(context.Background(), "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unreachable sidecar is an error", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		r := NewHTTPRecognizer(HTTPConfig{BaseURL: url, Timeout: time.Second}, zap.NewNop())
		_, err := r.Recognize(context.Background(), "text")
		require.Error(t, err)
	})

	t.Run("rate limiter honours context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ents":[]}`))
		}))
		defer server.Close()

		r := NewHTTPRecognizer(HTTPConfig{BaseURL: server.URL, RateLimit: 0.001, Burst: 1}, zap.NewNop())
		_, err := r.Recognize(context.Background(), "first")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = r.Recognize(ctx, "second")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limiter")
	})
}

func TestNewFactory(t *testing.T) {
	rec, err := New(config.NERConfig{Backend: BackendGazetteer}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Gazetteer{}, rec)

	rec, err = New(config.NERConfig{Backend: BackendHTTP, URL: "http://localhost:1"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HTTPRecognizer{}, rec)

	_, err = New(config.NERConfig{Backend: BackendGazetteer, GazetteerPath: "/does/not/exist.yaml"}, zap.NewNop())
	require.Error(t, err)

	_, err = New(config.NERConfig{Backend: "onnx"}, zap.NewNop())
	require.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	build := func(entities map[Label][]string) *Gazetteer {
		g, err := NewGazetteer(&GazetteerFile{Entities: entities}, zap.NewNop())
		require.NoError(t, err)
		return g
	}

	a := build(map[Label][]string{LabelPerson: {"Alice", "Bob"}, LabelGPE: {"Pune"}})
	same := build(map[Label][]string{LabelGPE: {"Pune"}, LabelPerson: {"Bob", "Alice", " Alice "}})
	other := build(map[Label][]string{LabelPerson: {"Alice", "Bob"}, LabelGPE: {"Mumbai"}})

	assert.Equal(t, Fingerprint(a), Fingerprint(same))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(other))
	assert.Regexp(t, `^gazetteer-[0-9a-f]{12}$`, Fingerprint(a))

	h1 := NewHTTPRecognizer(HTTPConfig{BaseURL: "http://ner-a:8001"}, zap.NewNop())
	h2 := NewHTTPRecognizer(HTTPConfig{BaseURL: "http://ner-b:8001/"}, zap.NewNop())
	h1again := NewHTTPRecognizer(HTTPConfig{BaseURL: "http://ner-a:8001/"}, zap.NewNop())

	assert.NotEqual(t, Fingerprint(h1), Fingerprint(h2))
	assert.Equal(t, Fingerprint(h1), Fingerprint(h1again))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(h1))

	fn := RecognizerFunc(func(context.Context, string) ([]Entity, error) { return nil, nil })
	assert.Equal(t, "anon", Fingerprint(fn))
}
