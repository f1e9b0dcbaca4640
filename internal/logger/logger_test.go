package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "piiscan.log")

	log, err := New(Config{
		Level:  "info",
		Format: "json",
		File:   &FileConfig{Enabled: true, Path: path},
	})
	require.NoError(t, err)

	log.WithComponent("test").Info("Scan started")
	_ = log.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"Scan started"`)
	assert.Contains(t, string(content), `"component":"test"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "console"})
	assert.Error(t, err)
}
