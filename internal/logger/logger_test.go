package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesStructuredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cms.log")

	Init(Config{Level: "debug", Output: path, Service: "redflag-cms"})

	Get().Info().Str("request_id", "req-1").Str("slug", "hello").Msg("Article created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"redflag-cms"`)
	assert.Contains(t, string(data), `"request_id":"req-1"`)
	assert.Contains(t, string(data), `"message":"Article created"`)

	// Later calls are ignored.
	Init(Config{Output: "stderr"})
	Get().Info().Msg("second")
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"second"`)
}
