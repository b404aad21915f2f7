// Package main is the entry point for the menu-service HTTP server.
// In Go, the `main` package with a `main()` function is what gets executed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/config"
	"github.com/fleveque/menu-service/internal/server"
)

// shutdownGrace is how long in-flight uploads get to finish after a signal.
const shutdownGrace = 15 * time.Second

func main() {
	// run() returns instead of exiting so its deferred cleanup still happens;
	// os.Exit skips defers.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	// Development output is human readable; production is JSON.
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run() error {
	cfg, err := config.Load(os.Getenv("MENU_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; nothing useful to do about it.
	defer func() { _ = logger.Sync() }()

	// ctx is cancelled on SIGINT (Ctrl+C) or SIGTERM (docker stop).
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Missing credentials are not fatal: the affected endpoints answer with an
	// error payload instead.
	deps, err := server.BuildDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("closing audit database", zap.Error(err))
		}
	}()

	srv := server.New(cfg, deps, logger)

	// The `go` keyword starts the listener on its own goroutine; the buffered
	// channel lets it report a bind failure without blocking.
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errChan:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
