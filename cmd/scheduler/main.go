package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inspection_portal/internal/activity"
	"inspection_portal/internal/automation"
	"inspection_portal/internal/email"
	"inspection_portal/internal/events"
	"inspection_portal/internal/inspections/repository"
	"inspection_portal/internal/notification"
	"inspection_portal/internal/refdata"
	"inspection_portal/internal/scheduler"
	"inspection_portal/internal/sms"
	"inspection_portal/platform/config"
	"inspection_portal/platform/db"
	"inspection_portal/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

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

	activityRepo := activity.NewRepository(pool)
	activity.Subscribe(eventBus, activityRepo, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewDispatcher(cfg, client, engine.Queue, log)

	worker, err := scheduler.NewWorker(cfg, engine.Orchestrator, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
	}
}

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
		return errors.New(name + ": invalid retry attempts")
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
