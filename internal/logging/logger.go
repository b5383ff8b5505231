// Package logging builds the process-wide slog logger. Diagnostics always go to
// stderr so the sample row stream on stdout stays machine-parsable.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"nodestat/internal/config"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBlue   = "\x1b[34m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

// New builds a logger from config: a stderr text sink, optionally tee'd into a
// file sink. Console color is applied only when no file sink is configured, so
// escape sequences never land in log files.
// Params: cfg logging configuration.
// Returns: logger, close function for the file sink, or setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}

	switch {
	case strings.TrimSpace(cfg.File) != "":
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", cfg.File, err)
		}
		out = io.MultiWriter(os.Stderr, file)
		closeFn = func() { _ = file.Close() }
	case cfg.Color:
		out = &colorLineWriter{dst: os.Stderr}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}

// parseLevel maps a config level name onto a slog level.
// Params: level configured level string.
// Returns: slog level or error on unknown name.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

// colorLineWriter colors whole log lines by their level token. Lines without a
// recognized level pass through unchanged.
type colorLineWriter struct {
	dst io.Writer
}

// Write colors one handler payload and forwards it downstream.
// Params: payload one rendered log line.
// Returns: reported consumed size and downstream write error.
func (w *colorLineWriter) Write(payload []byte) (int, error) {
	color := levelColor(payload)
	if color == "" {
		return w.dst.Write(payload)
	}

	line := payload
	trailing := ""
	if bytes.HasSuffix(line, []byte("\n")) {
		line = line[:len(line)-1]
		trailing = "\n"
	}

	if _, err := fmt.Fprintf(w.dst, "%s%s%s%s", color, line, ansiReset, trailing); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// levelColor picks the line color from the level token.
// Params: payload rendered log line.
// Returns: ANSI color prefix or empty string for passthrough.
func levelColor(payload []byte) string {
	switch {
	case bytes.Contains(payload, []byte("level=INFO")):
		return ansiBlue
	case bytes.Contains(payload, []byte("level=WARN")):
		return ansiYellow
	case bytes.Contains(payload, []byte("level=ERROR")):
		return ansiRed
	default:
		return ""
	}
}
