package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-passport/internal/infra/config"
	"github.com/arklim/social-platform-passport/internal/transport/http/handlers"
	"github.com/arklim/social-platform-passport/internal/transport/http/middleware"
	"github.com/arklim/social-platform-passport/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Registration *usecase.RegistrationService
	Auth         *usecase.AuthService
	Recovery     *usecase.RecoveryService
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
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
	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}

	checks := map[string]handlers.ReadinessCheck{}
	if deps.Database != nil {
		checks["postgres"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		rlCfg := deps.Config.RateLimit

		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
		registrationHandler.RegisterRoutes(api, flowStartLimit(deps.RateLimiter, middleware.RateLimitRule{
			Name:   "register",
			Limit:  rlCfg.RegisterMaxAttempts,
			Window: rlCfg.WindowDuration,
		})...)

		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		authHandler.RegisterRoutes(api, flowStartLimit(deps.RateLimiter, middleware.RateLimitRule{
			Name:   "auth",
			Limit:  rlCfg.LoginMaxAttempts,
			Window: rlCfg.WindowDuration,
		})...)

		recoveryHandler := handlers.NewRecoveryHandler(deps.Services.Recovery)
		recoveryHandler.RegisterRoutes(api, flowStartLimit(deps.RateLimiter, middleware.RateLimitRule{
			Name:   "recover",
			Limit:  rlCfg.RecoverMaxAttempts,
			Window: rlCfg.WindowDuration,
		})...)
	}

	return r
}

func flowStartLimit(rl *middleware.RateLimiter, rule middleware.RateLimitRule) []gin.HandlerFunc {
	if rl == nil {
		return nil
	}
	return []gin.HandlerFunc{rl.Limit(rule)}
}
