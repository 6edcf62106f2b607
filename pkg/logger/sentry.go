package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// MinLevel determines which log levels are stored in Sentry as logs.
	// Errors always become Sentry events.
	MinLevel slog.Level
}

// Flush waits up to timeout for buffered Sentry events to be sent.
// It reports whether the buffer was emptied.
type Flush func(timeout time.Duration) bool

func noFlush(time.Duration) bool { return true }

// New creates a logger writing to cfg.Output and, when cfg.Sentry.DSN is
// set, to Sentry as well. Context extractors apply to both destinations.
//
// The returned Flush must run before the process exits so swallowed
// command errors reported to Sentry are not lost.
//
// If Sentry fails to initialize the logger falls back to the local output
// and logs the reason.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, Flush, error) {
	w := cfg.Output
	if w == nil {
		w = os.Stdout
	}
	local, err := cfg.handler(w)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Sentry.DSN == "" {
		return slog.New(NewLogHandlerDecorator(local, extractors...)), noFlush, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(local).Error("failed to initialize Sentry", slog.Any("error", err))
		return slog.New(NewLogHandlerDecorator(local, extractors...)), noFlush, nil
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.Sentry.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	remote := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	h := NewLogHandlerDecorator(newMultiHandler(local, remote), extractors...)
	return slog.New(h), sentry.Flush, nil
}
