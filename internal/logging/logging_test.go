package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(&buf, Options{Level: "warn", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", slog.String("language", "go"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "go", entry["language"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := newLogger(&buf, Options{})
	require.NoError(t, err)

	logger.Info("server starting", slog.Int("port", 8080))
	assert.Contains(t, buf.String(), "msg=\"server starting\" port=8080")
}

func TestNew_UnknownFormat(t *testing.T) {
	_, _, err := newLogger(&bytes.Buffer{}, Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "coderunner.log")
	var console bytes.Buffer

	logger, closer, err := newLogger(&console, Options{File: path, Format: "json", MaxSize: 1})
	require.NoError(t, err)

	logger.Info("execution finished", slog.String("status", "success"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"success"`)
	assert.Contains(t, console.String(), `"status":"success"`)
}
