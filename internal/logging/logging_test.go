package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "console.log")

	logger, err := New("debug", "json", path, "anticrime-console")
	require.NoError(t, err)

	logger.Info("frame dropped")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "frame dropped"))
	assert.True(t, strings.Contains(out, `"service":"anticrime-console"`))
	assert.True(t, strings.Contains(out, `"timestamp"`))
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New("warn", "json", path, "")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestDefaultFile(t *testing.T) {
	got := DefaultFile("console")
	assert.True(t, strings.HasSuffix(got, "console.log"))
}
