package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	// GIVEN: A logger at warn level with a log file
	// WHEN: Logging one info and one warn entry
	// THEN: Only the warn entry reaches the file, as JSON with the configured keys

	path := filepath.Join(t.TempDir(), "server.log")
	logger, err := New(Options{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info("ignored")
	logger.Warn("budget exceeded")
	// stdout may not support fsync
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, `"message":"budget exceeded"`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"timestamp":`)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}
