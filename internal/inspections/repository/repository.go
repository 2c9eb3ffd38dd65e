// Package repository persists inspection snapshots. The snapshot body and
// the trigger list live in separate JSONB columns so trigger bookkeeping
// never rewrites the projection payload.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inspection_portal/internal/automation/domain"
	inspection "inspection_portal/internal/inspections/domain"
	"inspection_portal/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const inspectionNotFoundMsg = "inspection not found"

// ErrAlreadySent reports that a once-only trigger's sent marker was already
// recorded, typically by a concurrent poller.
var ErrAlreadySent = errors.New("trigger already marked sent")

// Repository provides database operations for inspection snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new inspections repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSnapshot loads the inspection projection including its trigger list.
func (r *Repository) GetSnapshot(ctx context.Context, inspectionID uuid.UUID) (inspection.Snapshot, error) {
	var (
		snapshotJSON []byte
		triggersJSON []byte
	)
	query := `SELECT snapshot, triggers FROM inspections WHERE id = $1`
	if err := r.pool.QueryRow(ctx, query, inspectionID).Scan(&snapshotJSON, &triggersJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inspection.Snapshot{}, apperr.NotFound(inspectionNotFoundMsg)
		}
		return inspection.Snapshot{}, fmt.Errorf("query inspection: %w", err)
	}

	var snap inspection.Snapshot
	if err := json.Unmarshal(snapshotJSON, &snap); err != nil {
		return inspection.Snapshot{}, fmt.Errorf("decode inspection snapshot: %w", err)
	}
	if err := json.Unmarshal(triggersJSON, &snap.Triggers); err != nil {
		return inspection.Snapshot{}, fmt.Errorf("decode trigger list: %w", err)
	}
	snap.ID = inspectionID
	return snap, nil
}

// UpsertSnapshot replaces the stored projection and trigger list for the
// inspection, inserting the row if it does not exist yet.
func (r *Repository) UpsertSnapshot(ctx context.Context, snap inspection.Snapshot) error {
	triggers := snap.Triggers
	snap.Triggers = nil

	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode inspection snapshot: %w", err)
	}
	if triggers == nil {
		triggers = []domain.TriggerConfig{}
	}
	triggersJSON, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("encode trigger list: %w", err)
	}

	query := `
		INSERT INTO inspections (id, company_id, snapshot, triggers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			snapshot   = EXCLUDED.snapshot,
			triggers   = EXCLUDED.triggers,
			updated_at = now()`

	if _, err := r.pool.Exec(ctx, query, snap.ID, snap.CompanyID, snapshotJSON, triggersJSON); err != nil {
		return fmt.Errorf("upsert inspection: %w", err)
	}
	return nil
}

// SetTriggerSent records a firing outcome on one trigger slot. Marking a
// once-only trigger sent is guarded against concurrent pollers: the second
// writer gets ErrAlreadySent instead of overwriting the first timestamp.
func (r *Repository) SetTriggerSent(ctx context.Context, inspectionID uuid.UUID, triggerIndex int, status domain.TriggerStatus, sentAt *time.Time) error {
	query := `
		UPDATE inspections
		SET triggers = jsonb_set(
			jsonb_set(triggers, ARRAY[$2::text, 'status'], to_jsonb($3::text)),
			ARRAY[$2::text, 'sentAt'],
			COALESCE(to_jsonb($4::timestamptz), 'null'::jsonb)),
		    updated_at = now()
		WHERE id = $1
		  AND jsonb_array_length(triggers) > $2
		  AND ($3::text <> 'sent'
		       OR NOT COALESCE((triggers->($2::int)->>'onlyTriggerOnce')::boolean, false)
		       OR triggers->($2::int)->>'sentAt' IS NULL)`

	result, err := r.pool.Exec(ctx, query, inspectionID, triggerIndex, string(status), sentAt)
	if err != nil {
		return fmt.Errorf("update trigger status: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// Distinguish the lost race from a missing row.
	var exists bool
	check := `SELECT EXISTS (SELECT 1 FROM inspections WHERE id = $1 AND jsonb_array_length(triggers) > $2)`
	if err := r.pool.QueryRow(ctx, check, inspectionID, triggerIndex).Scan(&exists); err != nil {
		return fmt.Errorf("check inspection: %w", err)
	}
	if exists {
		return ErrAlreadySent
	}
	return apperr.NotFound(inspectionNotFoundMsg)
}

// Ping verifies database connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
