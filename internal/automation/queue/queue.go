// Package queue provides the durable, time-ordered store for deferred
// trigger executions. At most one live record exists per
// (inspection, trigger index); enqueueing again for the same slot replaces
// the previous record so a rescheduled anchor date never leaves two timers.
package queue

import (
	"context"
	"time"

	"inspection_portal/internal/automation/domain"

	"github.com/google/uuid"
)

// Record is one pending trigger execution.
type Record struct {
	InspectionID  uuid.UUID         `json:"inspectionId"`
	TriggerIndex  int               `json:"triggerIndex"`
	ExecutionTime time.Time         `json:"executionTime"`
	TriggerKey    domain.TriggerKey `json:"triggerKey"`
}

// Queue is the deferred-execution store. Any backend offering keyed upsert,
// range query by time and atomic pop can implement it; this repo ships a
// Postgres and a Redis sorted-set implementation.
type Queue interface {
	// Enqueue upserts the record for (InspectionID, TriggerIndex),
	// replacing any existing entry for that slot.
	Enqueue(ctx context.Context, rec Record) error

	// Remove deletes the record for the slot if present. Idempotent.
	Remove(ctx context.Context, inspectionID uuid.UUID, triggerIndex int) error

	// PopDue returns and removes every record with ExecutionTime <= now.
	// Each record is returned to exactly one caller under concurrent
	// pollers; the orchestrator's sentAt gate is the second line of
	// defense should a backend only manage at-least-once.
	PopDue(ctx context.Context, now time.Time) ([]Record, error)

	// ListForInspection returns the inspection's records ordered by
	// execution time; with onlyFuture set, past-due records are omitted.
	ListForInspection(ctx context.Context, inspectionID uuid.UUID, onlyFuture bool) ([]Record, error)

	// GarbageCollect removes records whose execution time is further in
	// the past than the retention horizon and reports how many were swept.
	GarbageCollect(ctx context.Context, olderThan time.Duration) (int, error)
}
