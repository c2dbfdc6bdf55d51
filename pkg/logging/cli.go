package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorReset  = "\033[0m"
)

// CLIHandler renders slog records as single colored lines for terminal
// output: green for routine messages, yellow for warnings, red for errors.
// Attributes are appended as key=value pairs. Colors are suppressed when
// the NO_COLOR environment variable is set.
type CLIHandler struct {
	writer  io.Writer
	level   slog.Level
	prefix  string
	noColor bool
}

func NewCLIHandler(w io.Writer, level slog.Level) *CLIHandler {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &CLIHandler{
		writer:  w,
		level:   level,
		noColor: noColor,
	}
}

func (h *CLIHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *CLIHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	if h.prefix != "" {
		msg = "[" + h.prefix + "] " + msg
	}

	if r.NumAttrs() > 0 {
		var attrs []string
		r.Attrs(func(a slog.Attr) bool {
			attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
			return true
		})
		if len(attrs) > 0 {
			msg = msg + ": " + strings.Join(attrs, " ")
		}
	}

	if !h.noColor {
		switch {
		case r.Level >= slog.LevelError:
			msg = colorRed + msg + colorReset
		case r.Level >= slog.LevelWarn:
			msg = colorYellow + msg + colorReset
		default:
			msg = colorGreen + msg + colorReset
		}
	}

	_, err := fmt.Fprintln(h.writer, msg)
	return err
}

func (h *CLIHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *CLIHandler) WithGroup(name string) slog.Handler {
	return &CLIHandler{
		writer:  h.writer,
		level:   h.level,
		prefix:  name,
		noColor: h.noColor,
	}
}

// NewCLILogger builds the logger the aire commands write through. Output
// goes to stderr so report and CSV payloads on stdout stay clean.
func NewCLILogger(level string) *slog.Logger {
	lev := ParseLogLevel(level)
	handler := NewCLIHandler(os.Stderr, lev)
	return slog.New(handler)
}

func SetDefaultCLILogger(level string) {
	slog.SetDefault(NewCLILogger(level))
}

// ParseLogLevel converts a string log level to slog.Level.
// Defaults to slog.LevelInfo for unrecognized strings.
func ParseLogLevel(level string) slog.Level {
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
