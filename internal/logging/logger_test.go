package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ledger.log")
	t.Setenv("LOG_FILE", path)

	logger, err := NewLogger("vending-ledger", "test", "debug")
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"service":"vending-ledger"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger("svc", "test", "loud")
	assert.Error(t, err)
}
