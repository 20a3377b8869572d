package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planets-service/internal/events"
	"planets-service/internal/middleware"
	"planets-service/internal/planet"
	"planets-service/internal/server"
	"planets-service/internal/shared/config"
	"planets-service/internal/shared/database"
	"planets-service/internal/shared/logger"
	"planets-service/internal/shared/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.Init(); err != nil {
		return err
	}
	logger.Init()

	cfg := config.GlobalConfig
	log := slog.With("component", "main")

	db, err := database.Connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	if err := db.RunMigrations(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The broker is the process-wide subscription fan-out. It is created
	// here, injected everywhere, and torn down on shutdown so every
	// subscriber stream terminates cleanly.
	broker := events.NewBroker[planet.Planet](cfg.Events.SubscriberBuffer, slog.With("component", "broker"))
	defer broker.Close()

	var publisher planet.Publisher = broker

	redisClient, err := redis.Connect()
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Failed to close redis client", "error", err)
			}
		}()

		// With Redis enabled, created planets are published through the
		// bridge so every server instance fans them out locally.
		bridge := events.NewBridge(redisClient.Client, cfg.Events.Channel, broker, slog.With("component", "bridge"))
		publisher = bridge
		go bridge.Run(ctx)
	}

	planetRepo := planet.NewRepository(db, slog.With("component", "planet"))
	planetService := planet.NewService(planetRepo, publisher, slog.With("component", "planet"))

	routes := server.NewRoutes(db, planetService, broker, slog.With("component", "routes"))
	mux := routes.Setup()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		Enabled:           cfg.RateLimit.Enabled,
	})
	corsMiddleware := middleware.NewCORS()

	handler := corsMiddleware.Middleware(rateLimiter.Middleware(mux))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")

	// Close the broker first so subscription streams end and their
	// handlers return before the server drains.
	broker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
