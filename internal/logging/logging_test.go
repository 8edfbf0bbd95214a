package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(types.LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "ps_id", "F1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "F1", rec["ps_id"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(types.LoggingConfig{Format: "text", Level: "debug"}, &buf)
	require.NoError(t, err)

	logger.Debug("hello", "ado_id", 7)
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "ado_id=7")
}

func TestNewWithWriter_Invalid(t *testing.T) {
	_, err := NewWithWriter(types.LoggingConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = NewWithWriter(types.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pbtoado.log")
	logger, closer, err := New(types.LoggingConfig{File: path})
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
