package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-passport/internal/core/port"
	"github.com/arklim/social-platform-passport/internal/infra/config"
	"github.com/arklim/social-platform-passport/internal/infra/database"
	kafkainfra "github.com/arklim/social-platform-passport/internal/infra/kafka"
	"github.com/arklim/social-platform-passport/internal/infra/logger"
	"github.com/arklim/social-platform-passport/internal/infra/mail"
	redisinfra "github.com/arklim/social-platform-passport/internal/infra/redis"
	"github.com/arklim/social-platform-passport/internal/infra/security"
	postgresrepo "github.com/arklim/social-platform-passport/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-passport/internal/repository/redis"
	"github.com/arklim/social-platform-passport/internal/transport/http/middleware"
	"github.com/arklim/social-platform-passport/internal/transport/http/routes"
	"github.com/arklim/social-platform-passport/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application owns the wired service graph and the HTTP listener.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	issuer, err := security.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	if err != nil {
		redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	templates, err := mail.NewTemplateSet(cfg.SMTP.TemplateDir)
	if err != nil {
		redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("load mail templates: %w", err)
	}
	mailer, err := mail.NewSMTPMailer(cfg.SMTP, templates, log)
	if err != nil {
		redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("kafka producer init failed, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	repos := postgresrepo.NewRepositories(pool)
	challengeStore := redisrepo.NewChallengeStore(redisClient.Client(), cfg.Redis.ChallengePrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	registrationService := usecase.NewRegistrationService(repos.Users, challengeStore, mailer, eventPublisher, log)
	authService := usecase.NewAuthService(repos.Users, challengeStore, mailer, eventPublisher, issuer, log)
	recoveryService := usecase.NewRecoveryService(repos.Users, challengeStore, mailer, eventPublisher, log)

	for _, svc := range []interface {
		WithChallengeTTL(time.Duration)
		WithCodeLength(int)
	}{registrationService, authService, recoveryService} {
		svc.WithChallengeTTL(cfg.Challenge.TTL)
		svc.WithCodeLength(cfg.Challenge.CodeLength)
	}
	registrationService.WithPasswordMinStrength(cfg.Policy.PasswordMinStrength)
	recoveryService.WithPasswordMinStrength(cfg.Policy.PasswordMinStrength)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Registration: registrationService,
			Auth:         authService,
			Recovery:     recoveryService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
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

	addr := fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting http server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
