// Package logging configures the process-wide slog logger. Output always
// goes to stderr: stdout carries the MCP protocol stream and must stay
// clean.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables consulted by Default.
const (
	EnvLevel  = "INTROSPECTOR_LOG_LEVEL"  // debug, info, warn, error
	EnvFormat = "INTROSPECTOR_LOG_FORMAT" // text or json
)

// Default builds a logger from the environment and tags every record with
// the component name. Unset or unrecognized values fall back to info-level
// text output.
func Default(component string) *slog.Logger {
	level := parseLevel(os.Getenv(EnvLevel))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv(EnvFormat), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("component", component)
}

// Nop returns a logger that discards everything. Tests use it to keep
// output quiet.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
