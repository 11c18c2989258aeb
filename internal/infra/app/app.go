package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
	"github.com/SameeraMS/BusTracking-Backend/internal/infra/config"
	"github.com/SameeraMS/BusTracking-Backend/internal/infra/database"
	kafkainfra "github.com/SameeraMS/BusTracking-Backend/internal/infra/kafka"
	"github.com/SameeraMS/BusTracking-Backend/internal/infra/logger"
	redisinfra "github.com/SameeraMS/BusTracking-Backend/internal/infra/redis"
	"github.com/SameeraMS/BusTracking-Backend/internal/infra/telemetry"
	postgresrepo "github.com/SameeraMS/BusTracking-Backend/internal/repository/postgres"
	redisrepo "github.com/SameeraMS/BusTracking-Backend/internal/repository/redis"
	"github.com/SameeraMS/BusTracking-Backend/internal/transport/http/routes"
	"github.com/SameeraMS/BusTracking-Backend/internal/transport/ws"
	"github.com/SameeraMS/BusTracking-Backend/internal/usecase"
)

// Application wires the tracking core together and owns its lifecycle.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	metrics  *telemetry.Metrics

	registry *usecase.SessionRegistry
	detector *usecase.OfflineDetector
	hub      *ws.Hub
}

// New builds the full dependency graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := telemetry.NewMetrics()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	cache := redisrepo.NewCurrentLocationCache(redisClient.Client(), cfg.Redis.LocationPrefix, cfg.Redis.LocationTTL)
	repos := postgresrepo.NewRepositories(pool)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	registry := usecase.NewSessionRegistry(repos.Sessions, eventPublisher, log)
	registry.WithTTL(cfg.Session.TTL)

	locations := usecase.NewLocationService(repos.Locations, cache, log)
	locations.WithRetention(cfg.History.Cap, cfg.History.MaxAge)

	hub := ws.NewHub(locations, cfg.WS, metrics, log)

	ingest := usecase.NewIngestService(registry, locations, hub, eventPublisher, cfg.Ingest.Strict, log)
	ingest.WithObserver(metrics)

	detector := usecase.NewOfflineDetector(repos.Sessions, locations, hub, eventPublisher, log)
	detector.WithThreshold(cfg.Offline.Threshold, cfg.Offline.Period)

	drivers := usecase.NewDriverService(repos.Drivers, registry, log)

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Hub:      hub,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Drivers:   drivers,
			Registry:  registry,
			Ingest:    ingest,
			Locations: locations,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		metrics:  metrics,
		registry: registry,
		detector: detector,
		hub:      hub,
	}, nil
}

// Run starts the HTTP server, the offline detector, and the session expiry
// sweep, then blocks until the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	go a.detector.Run(ctx)
	go a.runSessionSweep(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting tracking API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// runSessionSweep deactivates expired sessions on a fixed interval and keeps
// the active-session gauge current.
func (a *Application) runSessionSweep(ctx context.Context) {
	interval := a.cfg.Session.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			swept := a.registry.SweepExpired(ctx)
			if swept > 0 {
				a.logger.Info("expired sessions swept", zap.Int("count", swept))
			}
			if stats, err := a.registry.Stats(ctx); err == nil {
				a.metrics.ActiveSessions(stats.ActiveSessions)
			}
		case <-ctx.Done():
			return
		}
	}
}
