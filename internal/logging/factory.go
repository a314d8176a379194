package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/rs/zerolog"
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a Logger writing to w. "text" and "json" use slog handlers,
// "console" uses zerolog's human-friendly console writer.
func New(format, level string, w io.Writer) (Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("%w: log level %q", common.ErrInvalidInput, level)
	}

	switch strings.ToLower(format) {
	case FormatText, "":
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))), nil
	case FormatJSON:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))), nil
	case FormatConsole:
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
			Level(zerologLevel(lvl)).
			With().Timestamp().Logger()
		return NewZerologLogger(zl), nil
	}
	return nil, fmt.Errorf("%w: log format %q", common.ErrInvalidInput, format)
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	}
	return zerolog.ErrorLevel
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return NewSlogLogger(slog.New(slog.DiscardHandler))
}
