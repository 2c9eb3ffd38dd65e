// Package refdata provides the reference data lookups backing condition
// evaluation: service categories, contact categories and calendar events.
package refdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read-only reference data queries.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new reference data repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ServiceCategoryIDs returns the distinct category ids of the given
// services. Services without a category are omitted.
func (r *Repository) ServiceCategoryIDs(ctx context.Context, serviceIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT category_id
		FROM services
		WHERE id = ANY($1) AND category_id IS NOT NULL`

	rows, err := r.pool.Query(ctx, query, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("query service categories: %w", err)
	}
	defer rows.Close()

	var categoryIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service category: %w", err)
		}
		categoryIDs = append(categoryIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read service categories: %w", err)
	}
	return categoryIDs, nil
}

// ContactCategoryID returns the category the contact belongs to. The second
// return value reports whether the contact has a category at all.
func (r *Repository) ContactCategoryID(ctx context.Context, contactID uuid.UUID) (uuid.UUID, bool, error) {
	var categoryID *uuid.UUID
	query := `SELECT category_id FROM contacts WHERE id = $1`
	if err := r.pool.QueryRow(ctx, query, contactID).Scan(&categoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("query contact category: %w", err)
	}
	if categoryID == nil {
		return uuid.Nil, false, nil
	}
	return *categoryID, true, nil
}

// EventNames returns the calendar event names attached to an inspection.
func (r *Repository) EventNames(ctx context.Context, inspectionID uuid.UUID) ([]string, error) {
	query := `SELECT name FROM calendar_events WHERE inspection_id = $1 ORDER BY name`

	rows, err := r.pool.Query(ctx, query, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read calendar events: %w", err)
	}
	return names, nil
}
