package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/truetest/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.EqualError(t, err, "invalid log level: loud")
}

func TestNew_Stderr(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvLogFile, "")
	os.Unsetenv(config.EnvLogLevel)
	os.Unsetenv(config.EnvLogFile)

	var stderr bytes.Buffer
	l, err := New(Options{}, config.NewConfig(), &stderr)
	require.NoError(t, err)
	defer l.Close()

	l.Info("quiet")
	l.Warn("loud", "key", "k")
	out := stderr.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "msg=loud")
	assert.Contains(t, out, "key=k")
	assert.Equal(t, slog.LevelInfo, l.Level)
}

func TestNew_FlagLevelOnTerminal(t *testing.T) {
	var stderr bytes.Buffer
	l, err := New(Options{Level: "debug"}, nil, &stderr)
	require.NoError(t, err)
	l.Debug("visible")
	assert.Contains(t, stderr.String(), "visible")
}

func TestNew_File(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "")
	os.Unsetenv(config.EnvLogLevel)

	path := filepath.Join(t.TempDir(), "tt.log")
	cfg := config.NewConfig()
	cfg.SetGlobalOption(config.KeyLogFile, path)
	cfg.SetGlobalOption(config.KeyLogLevel, "debug")

	var stderr bytes.Buffer
	l, err := New(Options{}, cfg, &stderr)
	require.NoError(t, err)
	l.Debug("stored", "key", "k")
	require.NoError(t, l.Close())

	assert.Empty(t, stderr.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec))
	assert.Equal(t, "stored", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "k", rec["key"])
}

func TestNew_FlagOverridesConfig(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "")
	os.Unsetenv(config.EnvLogLevel)

	cfg := config.NewConfig()
	cfg.SetGlobalOption(config.KeyLogLevel, "bogus")
	_, err := New(Options{}, cfg, &bytes.Buffer{})
	require.Error(t, err)

	l, err := New(Options{Level: "error"}, cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, l.Level)
}
