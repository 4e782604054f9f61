package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONFormatForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "auto", Writer: &buf})
	require.NoError(t, err)

	logger.Info("import complete", slog.String("run_id", "abc"))
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"msg":"import complete"`)
	assert.Contains(t, out, `"run_id":"abc"`)
	assert.NotContains(t, out, "hidden")
}

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "console", Writer: &buf})
	require.NoError(t, err)

	logger.Debug("row resolved", slog.String("tier", "isrc"))
	assert.Contains(t, buf.String(), "msg=\"row resolved\"")
	assert.Contains(t, buf.String(), "tier=isrc")
}

func TestNewRejectsUnknownValues(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
	_, err = New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Error("dropped") })
}
