package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/infra/config"
	"github.com/SameeraMS/BusTracking-Backend/internal/transport/http/handlers"
	"github.com/SameeraMS/BusTracking-Backend/internal/transport/http/middleware"
	"github.com/SameeraMS/BusTracking-Backend/internal/transport/ws"
	"github.com/SameeraMS/BusTracking-Backend/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Drivers   *usecase.DriverService
	Registry  *usecase.SessionRegistry
	Ingest    *usecase.IngestService
	Locations *usecase.LocationService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Hub      *ws.Hub
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS([]string{"*"}))

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else {
		deps.Logger.Warn("HTTP metrics disabled", zap.Error(err))
	}

	checks := map[string]handlers.ReadinessCheck{}
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Hub != nil {
		r.GET("/ws", gin.WrapF(deps.Hub.ServeWS))
	}

	api := r.Group("/api/v1")
	{
		gps := api.Group("/gps")

		driverHandler := handlers.NewDriverHandler(deps.Services.Drivers, deps.Services.Registry)
		driverHandler.RegisterRoutes(gps)

		locationHandler := handlers.NewLocationHandler(deps.Services.Ingest, deps.Services.Locations, deps.Services.Drivers)
		locationHandler.RegisterRoutes(gps)

		adminHandler := handlers.NewAdminHandler(deps.Services.Drivers, deps.Services.Registry, deps.Hub)
		adminHandler.RegisterRoutes(gps)
	}

	return r
}
