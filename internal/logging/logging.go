package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 5
	maxLogBackups = 3
	maxLogAgeDays = 7
)

// Init installs a stdout logger as the slog default.
func Init(level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}

// InitFile installs a logger writing to a size-rotated file as the slog
// default. The returned closer flushes and closes the current file.
func InitFile(path, level, format string) (*slog.Logger, io.Closer, error) {
	path = strings.TrimSpace(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger := New(io.Discard, level, format)
		slog.SetDefault(logger)
		return logger, nopCloser{}, err
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}
	logger := New(writer, level, format)
	slog.SetDefault(logger)
	return logger, writer, nil
}

func New(out io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.New(slog.NewTextHandler(out, opts))
	default:
		return slog.New(slog.NewJSONHandler(out, opts))
	}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
