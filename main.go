package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vistacrop/internal/app"
)

func main() {
	addr := flag.String("addr", envOr("VISTACROP_ADDR", "127.0.0.1:8499"), "listen address")
	dataDir := flag.String("data-dir", os.Getenv("VISTACROP_DATA_DIR"), "data directory (default ~/.local/share/vistacrop)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a := app.New(app.Config{DataDir: *dataDir, Log: log})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Startup(ctx); err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:        *addr,
		Handler:     a.Router(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: exports and event streams are long-lived.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", *addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	a.Shutdown(shutdownCtx)
	log.Info("stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
