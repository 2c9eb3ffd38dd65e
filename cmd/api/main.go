package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inspection_portal/internal/activity"
	"inspection_portal/internal/automation"
	"inspection_portal/internal/email"
	"inspection_portal/internal/events"
	apphttp "inspection_portal/internal/http"
	"inspection_portal/internal/http/router"
	"inspection_portal/internal/inspections"
	"inspection_portal/internal/inspections/repository"
	"inspection_portal/internal/notification"
	"inspection_portal/internal/refdata"
	"inspection_portal/internal/sms"
	"inspection_portal/migrations"
	"inspection_portal/platform/config"
	"inspection_portal/platform/db"
	"inspection_portal/platform/logger"
	"inspection_portal/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var emailSender *email.SMTPSender
	if cfg.GetEmailEnabled() {
		emailSender = email.NewSMTPSender(cfg)
	} else {
		log.Warn("email delivery disabled; email triggers will bounce")
	}
	smsClient := sms.NewClient(cfg, log)
	delivery := notification.New(emailSender, smsClient, log)

	inspectionRepo := repository.New(pool)
	lookups := refdata.New(pool)

	engine, err := automation.NewEngine(cfg, pool, redisClient, lookups, inspectionRepo, delivery, eventBus, log)
	if err != nil {
		log.Error("failed to initialize automation engine", "error", err)
		panic("failed to initialize automation engine: " + err.Error())
	}

	// Activity log subscribes to automation outcomes
	activityRepo := activity.NewRepository(pool)
	activity.Subscribe(eventBus, activityRepo, log)
	activityModule := activity.NewModule(activityRepo)

	val := validator.New()
	inspectionsModule := inspections.NewModule(inspectionRepo, engine.Orchestrator, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   inspectionRepo,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			inspectionsModule,
			activityModule,
		},
	}

	ginEngine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- ginEngine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newRedisClient builds the redis client when the redis queue backend is
// configured; the postgres backend needs none.
func newRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.GetQueueBackend() != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() && opt.TLSConfig != nil {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
