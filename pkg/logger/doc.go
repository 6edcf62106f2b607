// Package logger builds the service's structured logger on top of log/slog.
//
// Records go to a local JSON (or text) handler and, when a Sentry DSN is
// configured, to Sentry: errors become Sentry events, warnings are kept as
// searchable logs. Cache commands that fail are swallowed into neutral
// results by the kv package and logged at error level, so Sentry is where
// they surface in production.
//
// # Usage
//
//	log, flush, err := logger.New(logger.Config{
//		Level:  slog.LevelInfo,
//		Sentry: logger.SentryConfig{DSN: os.Getenv("SENTRY_DSN")},
//	}, logger.ContextValue("request_id", middleware.RequestIDKey))
//	if err != nil {
//		return err
//	}
//	defer flush(2 * time.Second)
//
// # Context Extractors
//
// A [ContextExtractor] pulls one attribute out of the context of every
// record, which is how request-scoped values such as the request id reach
// logs written deep inside the pool. [ContextValue] covers the common case
// of a string stored under a context key.
//
// Without a DSN, or when Sentry fails to initialize, only the local handler
// is used. [NewNope] discards everything and is the default logger of every
// package in this module.
package logger
