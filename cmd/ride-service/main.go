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

	"ride-sim/internal/ride-service/consumer"
	"ride-sim/internal/ride-service/domain"
	"ride-sim/internal/ride-service/handler"
	"ride-sim/internal/ride-service/infrastructure/catalog"
	"ride-sim/internal/ride-service/infrastructure/messaging"
	"ride-sim/internal/ride-service/infrastructure/repository"
	"ride-sim/internal/ride-service/infrastructure/routing"
	"ride-sim/internal/ride-service/service"
	"ride-sim/internal/ride-service/simulator"
	"ride-sim/pkg/auth"
	"ride-sim/pkg/config"
	"ride-sim/pkg/db"
	"ride-sim/pkg/logger"
	"ride-sim/pkg/rabbitmq"
	"ride-sim/pkg/ratelimit"
	"ride-sim/pkg/websocket"
)

const (
	historyPerPassenger = 100
	staleRideAge        = time.Minute
)

func main() {
	// Load config
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.NewLogger("ride-service")
	log.WithFields(logger.LogFields{"port": cfg.Services.RideService}).Info("service_starting", "Ride Service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog and fleet
	catalogFile, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		log.Error("catalog_load_failed", err)
		os.Exit(1)
	}
	catalogRepo := catalog.NewMemoryCatalog(catalogFile)
	if cfg.SurgeMultiplier > 0 {
		catalogRepo.SetSurge(cfg.SurgeMultiplier)
		log.WithFields(logger.LogFields{"surge": cfg.SurgeMultiplier}).Info("surge_override", "Surge multiplier overridden")
	}
	driverRepo := repository.NewMemoryDriverRepository(catalogFile.Drivers())

	// Storage
	rideRepo, closeDB, err := openRideRepository(ctx, cfg, log)
	if err != nil {
		log.Error("db_connect_failed", err)
		os.Exit(1)
	}
	defer closeDB()

	// Connect to RabbitMQ
	rabbit, err := rabbitmq.NewConnection(cfg, log)
	if err != nil {
		log.Error("rabbitmq_connect_failed", err)
		os.Exit(1)
	}
	defer rabbit.Close()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	wsManager := websocket.NewManager(log)
	publisher := messaging.NewRabbitMQEventPublisher(rabbit, log)

	// Simulation
	dispatcher := service.NewDispatcher(driverRepo, cfg.Simulation.SpawnOffsetKm, log)
	session := service.NewBookingSession(rideRepo, catalogRepo, dispatcher, publisher, log, historyPerPassenger)
	engine := simulator.NewEngine(simulator.Config{
		TickInterval:    cfg.Simulation.TickInterval,
		SpeedKmh:        cfg.Simulation.SpeedKmh,
		BoardingDelay:   cfg.Simulation.BoardingDelay,
		AcceptanceDelay: cfg.Simulation.AcceptanceDelay,
	}, simulator.NewTimeScheduler(), time.Now, session, log)
	defer engine.Stop()
	engine.Subscribe(service.NewRideRecorder(rideRepo, log))
	engine.Subscribe(service.NewEventRelay(publisher, wsManager, time.Now, log))

	// Use cases
	routes := newRouteProvider(cfg, log)
	limiter := ratelimit.NewMemoryRateLimiter(cfg.RateLimit.Interval, cfg.RateLimit.Burst, time.Now)
	go limiter.Run(ctx, 5*time.Minute)
	cancelRide := service.NewCancelRideUseCase(rideRepo, catalogRepo, engine, session, time.Now, log)
	h := handler.New(handler.UseCases{
		RequestRide:  service.NewRequestRideUseCase(rideRepo, catalogRepo, routes, dispatcher, engine, publisher, time.Now, log),
		CancelRide:   cancelRide,
		GetRide:      service.NewGetRideUseCase(rideRepo, engine, dispatcher),
		EstimateFare: service.NewEstimateFareUseCase(catalogRepo, routes, log),
		Session:      session,
	}, catalogRepo, jwtManager, limiter, log)

	// Remote commands
	if err := consumer.New(rabbit, cancelRide, log).StartConsuming(ctx); err != nil {
		log.Error("consumer_start_failed", err)
		os.Exit(1)
	}

	// Setup routes
	mux := http.NewServeMux()
	h.Register(mux)

	// WebSocket endpoint for passengers with passenger_id in path
	mux.Handle("GET /ws/passengers/{passenger_id}", websocket.NewHandler(
		log,
		jwtManager,
		func(conn *websocket.Connection) {
			passengerID := conn.UserID()
			wsManager.AddConnection(passengerID, conn)

			conn.ReadPump(
				func(msgType int, p []byte) {
					log.WithFields(logger.LogFields{
						"passenger_id": passengerID,
						"message":      string(p),
					}).Debug("passenger_ws_message", "Message from passenger")
				},
				func() {
					wsManager.RemoveConnection(passengerID, conn)
				},
			)
		},
		auth.RolePassenger,
		"passenger_id",
	))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.RideService),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_failed", err)
			os.Exit(1)
		}
	}()

	log.WithFields(logger.LogFields{"addr": srv.Addr}).Info("server_running", "Ride Service is running")

	<-ctx.Done()

	log.WithFields(logger.LogFields{
		"active_rides":   engine.ActiveCount(),
		"ws_connections": wsManager.GetConnectionCount(),
	}).Info("server_shutdown", "Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", err)
	}
	log.Info("server_stopped", "Server stopped gracefully")
}

// openRideRepository returns the configured ride store and its closer.
func openRideRepository(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.RideRepository, func(), error) {
	if cfg.Storage == "memory" {
		log.Warn("storage_memory", "Rides are kept in memory and lost on restart")
		return repository.NewMemoryRideRepository(), func() {}, nil
	}

	pool, err := db.NewConnection(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	repo := repository.NewPostgresRideRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Sessions do not survive a restart, so rides left active can never finish.
	n, err := repo.CancelStale(ctx, time.Now(), staleRideAge)
	if err != nil {
		log.Error("cancel_stale_failed", err)
	} else if n > 0 {
		log.WithFields(logger.LogFields{"count": n}).Warn("stale_rides_cancelled", "Cancelled rides left active by a previous run")
	}

	return repo, pool.Close, nil
}

func newRouteProvider(cfg *config.Config, log logger.Logger) domain.RouteProvider {
	if cfg.Routing.Provider == "straight" {
		log.Info("routing_straight_line", "Using straight-line routes")
		return routing.NewStraightLineProvider(cfg.Simulation.SpeedKmh)
	}
	return routing.NewDirectionsClient(cfg.Routing.BaseURL, cfg.Routing.Profile, cfg.Routing.AccessToken, cfg.Routing.Timeout, log)
}
