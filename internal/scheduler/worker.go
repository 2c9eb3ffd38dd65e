package scheduler

import (
	"context"
	"fmt"

	"inspection_portal/internal/automation/domain"
	"inspection_portal/internal/automation/queue"
	"inspection_portal/internal/automation/service"
	"inspection_portal/platform/config"
	"inspection_portal/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	orch   *service.Orchestrator
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, orch *service.Orchestrator, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queueName := cfg.GetAsynqQueueName()
	if queueName == "" {
		queueName = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		orch:   orch,
		log:    log,
	}

	mux.HandleFunc(TaskTriggerDue, w.handleTriggerDue)

	return w, nil
}

func (w *Worker) handleTriggerDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTriggerDuePayload(task)
	if err != nil {
		return err
	}

	inspectionID, err := uuid.Parse(payload.InspectionID)
	if err != nil {
		return err
	}

	return w.orch.ExecuteQueued(ctx, queue.Record{
		InspectionID:  inspectionID,
		TriggerIndex:  payload.TriggerIndex,
		ExecutionTime: payload.ExecutionTime,
		TriggerKey:    domain.TriggerKey(payload.TriggerKey),
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
