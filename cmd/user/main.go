package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agora-social/agora/internal/container"
	"github.com/agora-social/agora/pkg/config"
	"github.com/agora-social/agora/pkg/interfaces"
)

func main() {
	// Load configuration
	cfg := config.MustLoadServiceConfig("user", config.ForService("user"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the process: logger, database, cache and event bus
	c, cleanup, err := container.InitializeUserService(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize user service: %v\n", err)
		os.Exit(1)
	}
	log := c.Logger

	log.Info("User service starting",
		interfaces.String("environment", cfg.Service.Environment),
		interfaces.String("event_backend", cfg.Events.Backend),
		interfaces.String("cache_driver", cfg.Cache.Driver))

	// Start event consumers
	stopConsumers, err := c.StartConsumers(ctx)
	if err != nil {
		log.Error("Failed to start event consumers", interfaces.Error(err))
		cleanup()
		os.Exit(1)
	}

	// Start health check server
	server := newHealthServer(cfg.Service.Port, c.Ready)
	go func() {
		log.Info("Health server starting", interfaces.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health server failed", interfaces.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down user service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTTL)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to stop health server", interfaces.Error(err))
	}

	// Consumers stop before the bus, cache and database close
	stopConsumers(shutdownCtx)
	cancel()
	cleanup()

	fmt.Println("User service stopped")
}

func newHealthServer(port int, ready func(context.Context) error) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})

	// Readiness check endpoint
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ready(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeStatus(w http.ResponseWriter, code int, status string, cause error) {
	body := map[string]string{"status": status}
	if cause != nil {
		body["error"] = cause.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
