package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitRejectsInvalidLevel(t *testing.T) {
	err := Init("loud", "json", "stdout")
	assert.Error(t, err)
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init("info", "json", path))
	t.Cleanup(func() { Log = zap.NewNop(); helper = Log })

	Info("hello", zap.String("k", "v"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), `"k":"v"`)
	// Caller attribution lands on this test, not the helper wrapper.
	assert.Contains(t, string(data), "logger_test.go")
}

func TestHelpersSafeBeforeInit(t *testing.T) {
	old := Log
	Log = zap.NewNop()
	helper = Log
	t.Cleanup(func() { Log = old; helper = old })

	assert.NotPanics(t, func() {
		Debug("d")
		Info("i")
		Warn("w")
		Error("e")
	})
}
