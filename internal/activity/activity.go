// Package activity records automation outcomes on the inspection's activity
// log. It subscribes to the in-process event bus so the orchestrator never
// blocks on activity writes.
package activity

import (
	"context"
	"fmt"
	"time"

	"inspection_portal/internal/events"
	"inspection_portal/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one activity log row.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	InspectionID uuid.UUID `json:"inspectionId"`
	TriggerIndex int       `json:"triggerIndex"`
	TriggerKey   string    `json:"triggerKey"`
	Channel      string    `json:"channel,omitempty"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Outcome values stored on activity rows.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeDeferred = "deferred"
)

// Repository persists activity entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an activity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores one activity entry.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO automation_activity (id, inspection_id, trigger_index, trigger_key, channel, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`

	if _, err := r.pool.Exec(ctx, query,
		uuid.New(), entry.InspectionID, entry.TriggerIndex,
		entry.TriggerKey, entry.Channel, entry.Outcome, entry.Reason,
	); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// ListForInspection returns the inspection's activity entries, newest first.
func (r *Repository) ListForInspection(ctx context.Context, inspectionID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, inspection_id, trigger_index, trigger_key, channel, outcome, reason, created_at
		FROM automation_activity
		WHERE inspection_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, inspectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.InspectionID, &e.TriggerIndex, &e.TriggerKey, &e.Channel, &e.Outcome, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read activity entries: %w", err)
	}
	return entries, nil
}

// Subscribe attaches the activity recorder to the automation events.
func Subscribe(bus events.Bus, repo *Repository, log *logger.Logger) {
	record := func(ctx context.Context, entry Entry) {
		if err := repo.Insert(ctx, entry); err != nil {
			log.Error("record automation activity", "error", err, "inspectionId", entry.InspectionID)
		}
	}

	bus.Subscribe(events.AutomationSent{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.AutomationSent)
		if !ok {
			return nil
		}
		record(ctx, Entry{
			InspectionID: e.InspectionID,
			TriggerIndex: e.TriggerIndex,
			TriggerKey:   string(e.TriggerKey),
			Channel:      string(e.Channel),
			Outcome:      OutcomeSent,
		})
		return nil
	}))

	bus.Subscribe(events.AutomationFailed{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.AutomationFailed)
		if !ok {
			return nil
		}
		record(ctx, Entry{
			InspectionID: e.InspectionID,
			TriggerIndex: e.TriggerIndex,
			TriggerKey:   string(e.TriggerKey),
			Channel:      string(e.Channel),
			Outcome:      OutcomeFailed,
			Reason:       e.Reason,
		})
		return nil
	}))

	bus.Subscribe(events.AutomationDeferred{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.AutomationDeferred)
		if !ok {
			return nil
		}
		record(ctx, Entry{
			InspectionID: e.InspectionID,
			TriggerIndex: e.TriggerIndex,
			TriggerKey:   string(e.TriggerKey),
			Outcome:      OutcomeDeferred,
		})
		return nil
	}))
}
