package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	"bilancio/internal/forecast"
	apphttp "bilancio/internal/http"
	"bilancio/internal/ledger"
	"bilancio/internal/lock"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/report"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.InitStore(ctx, logger, cfg)

	// Serialize tenant mutations across replicas when Redis is configured.
	var locker lock.Locker = lock.NewLocal()
	var redisLock *lock.Redis
	if cfg.RedisURL != "" {
		rl, err := lock.NewRedis(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			logger.Error("Failed to connect to Redis", log.FieldError, err)
			os.Exit(1)
		}
		redisLock, locker = rl, rl
		logger.Info("Using Redis tenant lock", "ttl", cfg.LockTTL)
	}

	svc := ledger.NewService(store.Store, locker, logger, ledger.Options{
		IncludeTransfersInDaily: cfg.IncludeTransfersInDaily,
		LockTimeout:             cfg.LockTimeout,
	})

	summaries := cache.NewSummaryCache(report.New(svc, logger, time.Now), cfg.SummaryCacheSize, cfg.SummaryCacheTTL, logger)
	svc.Observe(summaries)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(summaries)
	cacheManager.StartCleanup(time.Minute)

	// AMQP is optional; without it no change events are published.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			amqpClient = c
			svc.Observe(amqp.NewPublisher(c))
			logger.Info("Publishing ledger changes", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	deps := apphttp.Deps{
		Ledger:    svc,
		Summaries: summaries,
		Auth:      apphttp.NewAuthenticator(cfg.JWTSecret),
		Logger:    logger,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Burst:             cfg.RateLimitBurst,
		},
		TrustedProxies: cfg.TrustedProxies,
	}
	if cfg.ForecastServiceURL != "" {
		deps.Forecast = forecast.NewClient(cfg.ForecastServiceURL, cfg.ForecastTimeout, logger)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, bearer tokens are not verified")
	}

	srv := apphttp.NewServer(cfg.Addr(), deps)

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if redisLock != nil {
			if err := redisLock.Close(); err != nil {
				logger.Warn("Redis close error", log.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Storage close error", log.FieldError, err)
		}
	})

	// Other processes sharing the store publish their changes too.
	if amqpClient != nil {
		go func() {
			err := amqpClient.WatchLedgerChanged(shutdownCtx, func(ctx context.Context, msg *amqp.LedgerChangedMessage) {
				summaries.InvalidateTenant(msg.Tenant)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Stopped watching ledger changes", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
