package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrInvalidConfig is returned for an unknown level or format.
var ErrInvalidConfig = errors.New("logger: invalid config")

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config selects where and how logs are written.
type Config struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	// Format is FormatJSON (default) or FormatText.
	Format string
	Sentry SentryConfig
	Level  slog.Level
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: level %q", ErrInvalidConfig, s)
}

func (c Config) handler(w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: c.Level}
	switch c.Format {
	case "", FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	case FormatText:
		return slog.NewTextHandler(w, opts), nil
	}
	return nil, fmt.Errorf("%w: format %q", ErrInvalidConfig, c.Format)
}
