package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/wasm-oj/wark/internal/audit"
	"github.com/wasm-oj/wark/internal/config"
	"github.com/wasm-oj/wark/internal/gateway"
	"github.com/wasm-oj/wark/internal/persistence"
	"github.com/wasm-oj/wark/internal/telemetry"
)

func serverCommand(args []string) int {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	fs.Parse(args)

	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}

	if err := audit.Init(cfg.HomeDir); err != nil {
		logger.Error("init audit log", "error", err)
		return 1
	}
	defer func() { _ = audit.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProvider, err := telemetry.Init(ctx, cfg.OTel)
	if err != nil {
		logger.Error("init telemetry", "error", err)
		return 1
	}
	defer otelProvider.Shutdown(ctx)

	store, err := persistence.Open(persistence.DefaultDBPath(cfg.HomeDir))
	if err != nil {
		logger.Error("open store", "error", err)
		return 1
	}
	defer store.Close()
	audit.SetDB(store.DB())

	srv, err := gateway.New(gateway.Config{
		AppSecret:        cfg.AppSecret,
		CORSOrigins:      cfg.CORS.AllowedOrigins,
		MaxCost:          cfg.MaxCost,
		MaxMemoryMB:      cfg.MaxMemoryMB,
		JudgeMaxCost:     cfg.JudgeMaxCost,
		JudgeMaxMemoryMB: cfg.JudgeMaxMemoryMB,
		CacheDir:         cfg.HomeDir,
		Callback:         cfg.Callback,
		Store:            store,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("build gateway", "error", err)
		return 1
	}

	sweep := srv.StartCallbackRetrySweep()
	if sweep != nil {
		defer sweep.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server exited", "error", err)
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", "error", err)
			return 1
		}
	}
	return 0
}

// newLogger picks a handler the way the teacher's main.go picks TUI vs
// daemon logging: a human-readable text handler on an interactive
// terminal, structured JSON otherwise (containers, log aggregators).
func newLogger() *slog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
