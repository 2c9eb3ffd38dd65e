package queue

import (
	"context"
	"errors"
	"time"

	"inspection_portal/internal/automation/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errPostgresNotConfigured = "trigger queue repository not configured"

// Postgres backs the queue with a table keyed on
// (inspection_id, trigger_index). PopDue claims rows with
// FOR UPDATE SKIP LOCKED so concurrent pollers never pop the same record.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (q *Postgres) Enqueue(ctx context.Context, rec Record) error {
	if q == nil || q.pool == nil {
		return errors.New(errPostgresNotConfigured)
	}

	_, err := q.pool.Exec(ctx,
		`INSERT INTO automation_trigger_queue (inspection_id, trigger_index, trigger_key, execution_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (inspection_id, trigger_index)
		 DO UPDATE SET trigger_key = EXCLUDED.trigger_key,
		               execution_time = EXCLUDED.execution_time,
		               updated_at = now()`,
		rec.InspectionID, rec.TriggerIndex, string(rec.TriggerKey), rec.ExecutionTime.UTC(),
	)
	return err
}

func (q *Postgres) Remove(ctx context.Context, inspectionID uuid.UUID, triggerIndex int) error {
	if q == nil || q.pool == nil {
		return errors.New(errPostgresNotConfigured)
	}

	_, err := q.pool.Exec(ctx,
		`DELETE FROM automation_trigger_queue
		 WHERE inspection_id = $1 AND trigger_index = $2`,
		inspectionID, triggerIndex,
	)
	return err
}

func (q *Postgres) PopDue(ctx context.Context, now time.Time) ([]Record, error) {
	if q == nil || q.pool == nil {
		return nil, errors.New(errPostgresNotConfigured)
	}

	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH due AS (
		SELECT inspection_id, trigger_index
		FROM automation_trigger_queue
		WHERE execution_time <= $1
		ORDER BY execution_time ASC
		FOR UPDATE SKIP LOCKED
	)
	DELETE FROM automation_trigger_queue q
	USING due
	WHERE q.inspection_id = due.inspection_id AND q.trigger_index = due.trigger_index
	RETURNING q.inspection_id, q.trigger_index, q.trigger_key, q.execution_time`, now.UTC())
	if err != nil {
		return nil, err
	}

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (q *Postgres) ListForInspection(ctx context.Context, inspectionID uuid.UUID, onlyFuture bool) ([]Record, error) {
	if q == nil || q.pool == nil {
		return nil, errors.New(errPostgresNotConfigured)
	}

	query := `SELECT inspection_id, trigger_index, trigger_key, execution_time
		 FROM automation_trigger_queue
		 WHERE inspection_id = $1
		 ORDER BY execution_time ASC`
	args := []any{inspectionID}
	if onlyFuture {
		query = `SELECT inspection_id, trigger_index, trigger_key, execution_time
			 FROM automation_trigger_queue
			 WHERE inspection_id = $1 AND execution_time > $2
			 ORDER BY execution_time ASC`
		args = append(args, time.Now().UTC())
	}

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (q *Postgres) GarbageCollect(ctx context.Context, olderThan time.Duration) (int, error) {
	if q == nil || q.pool == nil {
		return 0, errors.New(errPostgresNotConfigured)
	}

	tag, err := q.pool.Exec(ctx,
		`DELETE FROM automation_trigger_queue
		 WHERE execution_time < $1`,
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var key string
		if err := rows.Scan(&rec.InspectionID, &rec.TriggerIndex, &key, &rec.ExecutionTime); err != nil {
			return nil, err
		}
		rec.TriggerKey = domain.TriggerKey(key)
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

var _ Queue = (*Postgres)(nil)
