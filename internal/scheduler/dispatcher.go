package scheduler

import (
	"context"
	"time"

	"inspection_portal/internal/automation/queue"
	"inspection_portal/platform/config"
	"inspection_portal/platform/logger"
)

// DispatcherConfig combines the scheduler and automation settings the
// dispatcher reads.
type DispatcherConfig interface {
	config.SchedulerConfig
	config.AutomationConfig
}

// Dispatcher pops due trigger records from the persistent queue and hands
// them to asynq. Multiple dispatchers can run against the same queue; the
// backends' claim semantics guarantee each record pops exactly once.
type Dispatcher struct {
	client    *Client
	queue     queue.Queue
	interval  time.Duration
	retention time.Duration
	log       *logger.Logger
}

func NewDispatcher(cfg DispatcherConfig, client *Client, q queue.Queue, log *logger.Logger) *Dispatcher {
	interval := cfg.GetDispatchInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Dispatcher{
		client:    client,
		queue:     q,
		interval:  interval,
		retention: cfg.GetQueueRetention(),
		log:       log,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.queue == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// GC runs far less often than dispatch.
	gcTicker := time.NewTicker(time.Hour)
	defer gcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gcTicker.C:
			d.collectGarbage(ctx)
		case <-ticker.C:
			d.dispatchDue(ctx)
		}
	}
}

func (d *Dispatcher) dispatchDue(ctx context.Context) {
	records, err := d.queue.PopDue(ctx, time.Now())
	if err != nil {
		d.log.Warn("queue pop failed", "error", err)
		return
	}

	for _, rec := range records {
		payload := TriggerDuePayload{
			InspectionID:  rec.InspectionID.String(),
			TriggerIndex:  rec.TriggerIndex,
			TriggerKey:    string(rec.TriggerKey),
			ExecutionTime: rec.ExecutionTime,
		}

		if err := d.client.ScheduleTriggerDue(ctx, payload, rec.ExecutionTime); err != nil {
			// Put the record back so the next tick retries it.
			if requeueErr := d.queue.Enqueue(ctx, rec); requeueErr != nil {
				d.log.Error("trigger record lost",
					"inspection_id", rec.InspectionID,
					"trigger_index", rec.TriggerIndex,
					"enqueue_error", err,
					"requeue_error", requeueErr,
				)
				continue
			}
			d.log.Error("trigger dispatch failed, record requeued",
				"inspection_id", rec.InspectionID,
				"trigger_index", rec.TriggerIndex,
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) collectGarbage(ctx context.Context) {
	if d.retention <= 0 {
		return
	}

	removed, err := d.queue.GarbageCollect(ctx, d.retention)
	if err != nil {
		d.log.Warn("queue garbage collection failed", "error", err)
		return
	}
	if removed > 0 {
		d.log.Info("stale queue records removed", "count", removed)
	}
}
