// Package automation wires the notification engine: condition evaluator,
// queue backend selection and the trigger orchestrator.
package automation

import (
	"fmt"

	"inspection_portal/internal/automation/condition"
	"inspection_portal/internal/automation/queue"
	"inspection_portal/internal/automation/service"
	"inspection_portal/internal/events"
	"inspection_portal/platform/config"
	"inspection_portal/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Engine bundles the orchestrator with the queue backend it schedules on,
// so the scheduler binary can drive the same queue the API defers to.
type Engine struct {
	Orchestrator *service.Orchestrator
	Queue        queue.Queue
}

// NewEngine selects the queue backend from configuration and assembles the
// orchestrator. The redis client may be nil when the postgres backend is
// configured.
func NewEngine(
	cfg config.AutomationConfig,
	pool *pgxpool.Pool,
	redisClient redis.UniversalClient,
	lookups condition.Lookups,
	store service.InspectionStore,
	delivery service.Delivery,
	bus events.Bus,
	log *logger.Logger,
) (*Engine, error) {
	q, err := newQueue(cfg, pool, redisClient)
	if err != nil {
		return nil, err
	}

	eval := condition.New(lookups, log)
	orch := service.NewOrchestrator(store, q, eval, delivery, bus, log)

	return &Engine{Orchestrator: orch, Queue: q}, nil
}

func newQueue(cfg config.AutomationConfig, pool *pgxpool.Pool, redisClient redis.UniversalClient) (queue.Queue, error) {
	switch cfg.GetQueueBackend() {
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("postgres queue backend requires a database pool")
		}
		return queue.NewPostgres(pool), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis queue backend requires a redis client")
		}
		return queue.NewRedis(redisClient), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.GetQueueBackend())
	}
}
