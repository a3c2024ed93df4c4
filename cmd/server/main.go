package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobleung/ds-broadcaster/broadcast"
	"github.com/bobleung/ds-broadcaster/internal/config"
	"github.com/bobleung/ds-broadcaster/internal/logging"
	"github.com/bobleung/ds-broadcaster/internal/rooms"
	"github.com/bobleung/ds-broadcaster/internal/server"
)

func runGracefulShutdown(srv *server.Server, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stop the broadcaster after the listener closes so in-flight
		// streams see their close sentinels and end cleanly.
		broadcaster.Stop()

		close(done)
	}()

	return done
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	broadcaster := broadcast.New(
		broadcast.WithHeartbeatInterval(cfg.HeartbeatInterval),
		broadcast.WithLogger(logging.Logger),
	)
	store := rooms.NewStore()

	srv, err := server.NewServer(cfg, broadcaster, store)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, broadcaster)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
