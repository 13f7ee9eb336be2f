package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-logger/backend/internal/config"
)

func TestNewConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "info", NoColor: true}, &buf, false)
	require.NoError(t, err)
	defer l.Close()

	cl := l.Component("export")
	cl.Info().Int("count", 3).Msg("Found locations")
	l.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "Found locations")
	assert.Contains(t, out, "component=export")
	assert.Contains(t, out, "count=3")
	assert.NotContains(t, out, "hidden")
}

func TestNewDebugOverride(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "warn", NoColor: true}, &buf, true)
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslog.log")
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, &buf, false)
	require.NoError(t, err)

	l.Error().Msg("Exception: boom")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Exception: boom")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{}, false)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info().Msg("dropped")
	assert.NoError(t, l.Close())
}
