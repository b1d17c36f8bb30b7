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
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_TextToBuffer(t *testing.T) {
	var buf bytes.Buffer

	logger, closer, err := New(Options{Level: "info", Format: FormatAuto, Stderr: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "k=v")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger, _, err := New(Options{Format: FormatJSON, Stderr: &buf})
	require.NoError(t, err)

	logger.Info("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
}

func TestNew_VerboseAndQuietOverrideLevel(t *testing.T) {
	var buf bytes.Buffer

	logger, _, err := New(Options{Level: "error", Verbose: true, Stderr: &buf})
	require.NoError(t, err)
	logger.Debug("dbg")
	assert.Contains(t, buf.String(), "dbg")

	buf.Reset()

	logger, _, err = New(Options{Level: "debug", Quiet: true, Stderr: &buf})
	require.NoError(t, err)
	logger.Warn("warned")
	assert.Empty(t, buf.String())
}

func TestNew_LogFile(t *testing.T) {
	var buf bytes.Buffer

	path := filepath.Join(t.TempDir(), "logs", "alidrive.log")

	logger, closer, err := New(Options{Level: "info", Format: FormatText, File: path, RetentionDays: 7, Stderr: &buf})
	require.NoError(t, err)

	logger.With(slog.String("component", "test")).Info("to both")
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "to both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "to both", rec["msg"])
	assert.Equal(t, "test", rec["component"])
}

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, FormatJSON, resolveFormat(FormatJSON, &buf))
	assert.Equal(t, FormatText, resolveFormat(FormatText, &buf))
	assert.Equal(t, FormatText, resolveFormat(FormatAuto, &buf))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	// A regular file is not a terminal.
	assert.Equal(t, FormatJSON, resolveFormat(FormatAuto, f))
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "", SanitizeToken(""))
	assert.Equal(t, "****", SanitizeToken("short"))
	assert.Equal(t, "****wxyz", SanitizeToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestFanout(t *testing.T) {
	_, err := Fanout()
	require.ErrorIs(t, err, ErrNoHandlers)

	var a, b bytes.Buffer

	h, err := Fanout(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	require.NoError(t, err)

	logger := slog.New(h).WithGroup("g")
	logger.Info("info-only", slog.Int("n", 1))
	logger.Error("both")

	assert.Contains(t, a.String(), "info-only")
	assert.Contains(t, a.String(), "g.n=1")
	assert.Contains(t, a.String(), "both")
	assert.NotContains(t, b.String(), "info-only")
	assert.Contains(t, b.String(), "both")
}
