package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "keywords", 4, "Authorization", "Bearer x", "dangling"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "keywords", 4, "Authorization", "[REDACTED]", "dangling"}, out)
}

func TestWithFileWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, closeFn, err := Nop().WithFile(path)
	require.NoError(t, err)

	l.With("run_id", "01ABC").Info("stage done", "stage", "ingest", "token", "hidden")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"msg":"stage done"`), line)
	assert.True(t, strings.Contains(line, `"run_id":"01ABC"`), line)
	assert.True(t, strings.Contains(line, `"token":"[REDACTED]"`), line)
}
