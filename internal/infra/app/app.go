package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/config"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/database"
	kafkainfra "github.com/maratoff/institute-dashboard-iam/internal/infra/kafka"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/logger"
	redisinfra "github.com/maratoff/institute-dashboard-iam/internal/infra/redis"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/security"
	postgresrepo "github.com/maratoff/institute-dashboard-iam/internal/repository/postgres"
	redisrepo "github.com/maratoff/institute-dashboard-iam/internal/repository/redis"
	"github.com/maratoff/institute-dashboard-iam/internal/transport/http/routes"
	"github.com/maratoff/institute-dashboard-iam/internal/usecase"
)

const resetTokenSweepInterval = time.Hour

// startupCleanup collects release callbacks for resources acquired during
// construction. If construction fails partway, run releases everything
// acquired so far, newest first. A successful build disarms it.
type startupCleanup struct {
	fns      []func()
	disarmed bool
}

func (c *startupCleanup) add(fn func()) {
	c.fns = append(c.fns, fn)
}

func (c *startupCleanup) disarm() {
	c.disarmed = true
}

func (c *startupCleanup) run() {
	if c.disarmed {
		return
	}
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
}

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	repos  *postgresrepo.Repositories
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cleanup := &startupCleanup{}
	defer cleanup.run()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	cleanup.add(pool.Close)

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	codec, err := security.NewSessionTokenCodec(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init session codec: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	cleanup.add(func() { _ = redisClient.Close() })

	flagCache := redisrepo.NewFlagCache(redisClient.Client(), cfg.Redis.FlagCachePrefix)
	revocationStore := redisrepo.NewSessionRevocationStore(redisClient.Client(), cfg.Redis.RevocationPrefix)

	repos := postgresrepo.NewRepositories(pool, domain.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	})

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "dash:rate-limit",
		TTL:       rateLimitWindow * 2,
	})

	loginMetrics, err := usecase.NewLoginMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init login metrics: %w", err)
	}

	loginService := usecase.NewLoginService(repos.Accounts, repos.LoginAttempts, codec, eventPublisher, loginMetrics, log)

	sessionService := usecase.NewSessionService(usecase.SessionConfig{
		IdleTimeout:  cfg.Session.IdleTimeout,
		FlagCacheTTL: cfg.Redis.FlagCacheTTL,
	}, repos.Accounts, flagCache, revocationStore, codec, eventPublisher, log)

	passwordService := usecase.NewPasswordService(usecase.PasswordResetConfig{
		TokenTTL:    cfg.Reset.TokenTTL,
		TokenBytes:  cfg.Reset.TokenBytes,
		RateWindow:  rateLimitWindow,
		MaxRequests: cfg.RateLimit.PasswordResetMaxAttempts,
	}, repos.Accounts, repos.ResetTokens, rateLimitStore, flagCache, eventPublisher, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RoutePolicy: usecase.DefaultRoutePolicy(),
		Pool:        pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Login:     loginService,
			Sessions:  sessionService,
			Passwords: passwordService,
		},
	})

	cleanup.disarm()

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		repos:  repos,
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

	go a.sweepExpiredResetTokens(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting dashboard IAM API",
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

// sweepExpiredResetTokens periodically removes reset tokens past their expiry.
// Expired tokens are rejected at consume time regardless; the sweep only keeps
// the table from growing without bound.
func (a *Application) sweepExpiredResetTokens(ctx context.Context) {
	ticker := time.NewTicker(resetTokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := a.repos.ResetTokens.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				a.logger.Warn("reset token sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				a.logger.Info("reset token sweep completed", zap.Int("deleted", deleted))
			}
		}
	}
}
