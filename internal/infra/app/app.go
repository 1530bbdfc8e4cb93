package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mealmap/platform-auth/internal/core/port"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/database"
	kafkainfra "github.com/mealmap/platform-auth/internal/infra/kafka"
	"github.com/mealmap/platform-auth/internal/infra/logger"
	redisinfra "github.com/mealmap/platform-auth/internal/infra/redis"
	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/infra/telemetry"
	postgresrepo "github.com/mealmap/platform-auth/internal/repository/postgres"
	redisrepo "github.com/mealmap/platform-auth/internal/repository/redis"
	"github.com/mealmap/platform-auth/internal/transport/http/middleware"
	"github.com/mealmap/platform-auth/internal/transport/http/routes"
	"github.com/mealmap/platform-auth/internal/usecase"
)

type Application struct {
	cfg             *config.AppConfig
	engine          *gin.Engine
	logger          *zap.Logger
	pool            *pgxpool.Pool
	redis           *redisinfra.Client
	accountAttempts port.AccountAttemptRepository
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if _, err := telemetry.Attach(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
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

	hasher, err := security.NewHasher(cfg.Password.BcryptCost)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init hasher: %w", err)
	}

	sessionSecret := cfg.Session.Secret
	if sessionSecret == "" && cfg.App.Env == "development" {
		log.Warn("session.secret not set, using development fallback")
		sessionSecret = "development-session-secret"
	}
	signer, err := security.NewCookieSigner(sessionSecret)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init cookie signer: %w", err)
	}

	policy := security.NewPasswordPolicy(cfg.Password.MinStrengthScore)

	repos := postgresrepo.NewRepositories(pool)
	grantStore := redisrepo.NewGrantRepository(redisClient.Client(), cfg.Redis.KeyPrefix)
	sessionStore := redisrepo.NewSessionRepository(redisClient.Client(), cfg.Redis.KeyPrefix)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		attemptTTL := cfg.RateLimit.AttemptTTL
		if attemptTTL <= 0 {
			attemptTTL = time.Hour
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.KeyPrefix, attemptTTL)
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	}

	loginService := usecase.NewLoginService(
		repos.Accounts, repos.AccountAttempts, repos.OriginAttempts,
		hasher, eventPublisher, cfg.Lockout,
	)
	registrationService := usecase.NewRegistrationService(
		repos.Accounts, grantStore, hasher, policy, eventPublisher, cfg.Session,
	)
	recoveryService := usecase.NewRecoveryService(
		repos.Accounts, repos.AccountAttempts, grantStore, hasher, policy, eventPublisher, cfg.Session,
	)
	passwordChangeService := usecase.NewPasswordChangeService(
		repos.Accounts, hasher, policy, eventPublisher, cfg.Password,
	)
	sessionService := usecase.NewSessionService(sessionStore, signer, cfg.Session)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: "auth"})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Login:          loginService,
			Registration:   registrationService,
			Recovery:       recoveryService,
			PasswordChange: passwordChangeService,
			Sessions:       sessionService,
		},
	})

	return &Application{
		cfg:             cfg,
		engine:          engine,
		logger:          log,
		pool:            pool,
		redis:           redisClient,
		accountAttempts: repos.AccountAttempts,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	purgeDone := a.startAttemptPurge(ctx)
	defer func() { <-purgeDone }()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
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

// startAttemptPurge sweeps stale username-attempt rows on a fixed interval so
// the tracker table stays bounded. The returned channel closes once the
// sweeper has exited.
func (a *Application) startAttemptPurge(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	interval := a.cfg.Lockout.PurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}
	retention := a.cfg.Lockout.AccountAttemptRetention
	if retention <= 0 {
		retention = 720 * time.Hour
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				purged, err := a.accountAttempts.PurgeStale(ctx, cutoff)
				if err != nil {
					a.logger.Warn("purge stale attempt trackers", zap.Error(err))
					continue
				}
				if purged > 0 {
					a.logger.Info("purged stale attempt trackers", zap.Int64("count", purged))
				}
			}
		}
	}()

	return done
}
