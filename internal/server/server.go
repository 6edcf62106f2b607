// Package server runs the HTTP listener with graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/redisgate/pkg/logger"
)

const (
	defaultAddress           = ":8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
	defaultShutdownTimeout   = 30 * time.Second
)

// Hook runs at shutdown with a context bounded by the shutdown timeout.
type Hook func(ctx context.Context) error

// Config describes one server run.
type Config struct {
	Handler http.Handler
	Logger  *slog.Logger
	// Listener overrides Address when set.
	Listener        net.Listener
	Address         string
	ShutdownTimeout time.Duration
	// ShutdownHooks run in order after the listener stops accepting.
	ShutdownHooks []Hook
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then stops
// the server and runs the shutdown hooks. Hook failures are logged and
// returned joined; every hook runs regardless.
//
// Example:
//
//	err := server.Run(ctx, server.Config{
//	    Handler:       router,
//	    Address:       cfg.Address,
//	    Logger:        log,
//	    ShutdownHooks: []server.Hook{pool.Shutdown(p)},
//	})
func Run(ctx context.Context, cfg Config) error {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNope()
	}

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           cfg.Handler,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln := cfg.Listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", srv.Addr); err != nil {
			return errors.Join(runHooks(cfg, log, err)...)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	errs := []error{serveErr}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, runHooksCtx(shutdownCtx, cfg, log)...)

	if err := errors.Join(errs...); err != nil {
		log.Error("shutdown completed with errors", slog.Any("error", err))
		return err
	}
	log.Info("shutdown completed")
	return nil
}

// runHooks releases resources when the server never started.
func runHooks(cfg Config, log *slog.Logger, cause error) []error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return append([]error{cause}, runHooksCtx(ctx, cfg, log)...)
}

func runHooksCtx(ctx context.Context, cfg Config, log *slog.Logger) []error {
	var errs []error
	for _, hook := range cfg.ShutdownHooks {
		if err := hook(ctx); err != nil {
			log.Error("shutdown hook failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errs
}
