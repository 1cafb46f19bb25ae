package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/config"
	"github.com/arklim/storefront-auth/internal/infra/database"
	kafkainfra "github.com/arklim/storefront-auth/internal/infra/kafka"
	"github.com/arklim/storefront-auth/internal/infra/logger"
	redisinfra "github.com/arklim/storefront-auth/internal/infra/redis"
	"github.com/arklim/storefront-auth/internal/infra/security"
	"github.com/arklim/storefront-auth/internal/infra/telemetry"
	postgresrepo "github.com/arklim/storefront-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/storefront-auth/internal/repository/redis"
	"github.com/arklim/storefront-auth/internal/transport/http/middleware"
	"github.com/arklim/storefront-auth/internal/transport/http/routes"
	"github.com/arklim/storefront-auth/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracing  *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	if cfg.Telemetry.TracingOn {
		a.tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	repos := postgresrepo.NewRepositories(a.pool)

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	sessionCache := redisrepo.NewSessionCache(a.redis.Client(), cfg.Redis.SessionPrefix)

	audit := a.auditPublisher()

	cipher, err := security.NewArgon2Cipher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	// Administrators carry no customer profile, so only the shop lookup requires approval.
	shopNative, err := usecase.NewNativeStrategy(repos.Users, cipher, port.IdentityFilter{RequireApprovedCustomer: true})
	if err != nil {
		return nil, fmt.Errorf("init shop native strategy: %w", err)
	}
	adminNative, err := usecase.NewNativeStrategy(repos.Users, cipher, port.IdentityFilter{})
	if err != nil {
		return nil, fmt.Errorf("init admin native strategy: %w", err)
	}

	registry, err := usecase.NewStrategyRegistry(cfg.Auth.AdminStrategies, cfg.Auth.ShopStrategies, usecase.StrategySet{
		Admin: []usecase.AuthenticationStrategy{adminNative},
		Shop:  []usecase.AuthenticationStrategy{shopNative},
	})
	if err != nil {
		return nil, fmt.Errorf("init strategy registry: %w", err)
	}

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	degradation := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Auth.CacheDegradation))
	sessionService := usecase.NewSessionService(repos.Users, repos.Sessions, repos.Transactor, cfg.Auth, log).
		WithCache(sessionCache, cfg.Auth.SessionCacheTTL).
		WithMetrics(authMetrics).
		WithDegradationPolicy(degradation)

	authService := usecase.NewAuthService(registry, sessionService, audit, log).WithMetrics(authMetrics)
	if a.tracing != nil {
		authService.WithTracer(a.tracing.Tracer())
	}

	loginService := usecase.NewLoginService(authService, registry, sessionService, repos.Administrators, log)

	log.Info("authentication strategies configured",
		zap.Strings("admin", registry.Configured(domain.APITypeAdmin)),
		zap.Strings("shop", registry.Configured(domain.APITypeShop)),
		zap.Bool("require_verification", cfg.Auth.RequireVerification),
		zap.String("token_method", cfg.Auth.TokenMethod),
		zap.String("cache_degradation", string(degradation.Mode())),
	)

	a.engine = routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Login:    loginService,
		Sessions: loginService,
		Metrics:  httpMetrics,
		Gatherer: prometheus.DefaultGatherer,
		Database: a.pool,
		Cache:    a.redis,
	})

	ok = true
	return a, nil
}

func (a *Application) auditPublisher() port.AuditPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka disabled, audit events go to the log")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}

	a.producer = producer
	return kafkainfra.NewAuditPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting storefront auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
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

// close releases infrastructure in reverse order of construction.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracing", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
