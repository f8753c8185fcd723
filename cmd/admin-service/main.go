package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ride-sim/pkg/auth"
	"ride-sim/pkg/config"
	"ride-sim/pkg/db"
	"ride-sim/pkg/logger"
	"ride-sim/pkg/rabbitmq"
)

func main() {
	log := logger.NewLogger("admin-service")
	log.Info("startup", "Starting admin service")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Error("startup", fmt.Errorf("failed to load config: %w", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg, log)
	if err != nil {
		log.Error("startup", fmt.Errorf("failed to connect to database: %w", err))
		os.Exit(1)
	}
	defer pool.Close()

	rabbit, err := rabbitmq.NewConnection(cfg, log)
	if err != nil {
		log.Error("startup", fmt.Errorf("failed to connect to RabbitMQ: %w", err))
		os.Exit(1)
	}
	defer rabbit.Close()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)

	mux := http.NewServeMux()
	NewAdminHandler(log, newPGStore(pool), rabbit, time.Now).Register(mux, jwtManager)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Services.AdminService),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info("startup", fmt.Sprintf("admin service listening on port %d", cfg.Services.AdminService))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("shutdown", fmt.Errorf("server error: %w", err))
		}
	case <-ctx.Done():
		log.Info("shutdown", "Shutdown signal received. Starting graceful shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", fmt.Errorf("failed to gracefully shutdown: %w", err))
	}

	log.Info("shutdown", "Admin service shutdown complete")
}
