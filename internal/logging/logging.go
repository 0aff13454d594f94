// Package logging builds the process logger from flags and configuration.
//
// With a log file configured, records at the resolved level are written as
// JSON to a size-rotated file and nothing is logged to the terminal.
// Without one, warnings and errors go to stderr as text.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joeycumines/truetest/internal/config"
)

// Options are the flag values; empty fields defer to configuration.
type Options struct {
	File  string
	Level string
}

// Logger is a configured logger plus the file it writes to, if any.
type Logger struct {
	*slog.Logger
	Level slog.Level
	file  io.Closer
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps debug, info, warn and error (any case) to slog levels.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", s)
}

// New resolves each setting as flag, then env/config via the schema, then
// default. stderr receives terminal output when no file is configured.
func New(opts Options, cfg *config.Config, stderr io.Writer) (*Logger, error) {
	schema := config.DefaultSchema()

	levelStr := opts.Level
	if levelStr == "" {
		levelStr = schema.Resolve(cfg, config.KeyLogLevel)
	}
	level, err := ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	path := opts.File
	if path == "" {
		path = schema.Resolve(cfg, config.KeyLogFile)
	}
	if path == "" {
		// An explicit -log-level flag is honoured on the terminal too.
		termLevel := max(level, slog.LevelWarn)
		if opts.Level != "" {
			termLevel = level
		}
		h := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: termLevel})
		return &Logger{Logger: slog.New(h), Level: level}, nil
	}

	sizeMB := resolveInt(schema, cfg, config.KeyLogMaxSizeMB, 10)
	if sizeMB < 1 {
		sizeMB = 10
	}
	backups := resolveInt(schema, cfg, config.KeyLogMaxFiles, 5)
	if backups < 0 {
		backups = 5
	}
	f, err := OpenRotatingFile(path, int64(sizeMB)<<20, backups)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(h), Level: level, file: f}, nil
}

func resolveInt(schema *config.ConfigSchema, cfg *config.Config, key string, def int) int {
	n, err := strconv.Atoi(schema.Resolve(cfg, key))
	if err != nil {
		return def
	}
	return n
}
