package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/infra/config"
	"github.com/arklim/storefront-auth/internal/transport/http/handlers"
	"github.com/arklim/storefront-auth/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Login    handlers.LoginGate
	Sessions middleware.SessionResolver
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens := middleware.NewTokenSettings(deps.Config.Auth)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins, tokens.HeaderName))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.Ping))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Login == nil {
		return r
	}

	authHandler := handlers.NewAuthHandler(deps.Login, tokens)
	for _, surface := range []struct {
		prefix  string
		apiType domain.APIType
	}{
		{prefix: "/shop-api", apiType: domain.APITypeShop},
		{prefix: "/admin-api", apiType: domain.APITypeAdmin},
	} {
		group := r.Group(surface.prefix,
			middleware.APIContext(surface.apiType),
			middleware.ResolveSession(deps.Sessions, tokens, deps.Logger),
		)
		authHandler.RegisterRoutes(group)
	}

	return r
}
