package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type JobRepository struct {
	DB *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{DB: db}
}

// EndedReservationIDs returns confirmed reservations whose end time has passed.
func (r *JobRepository) EndedReservationIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id FROM reservations WHERE status = 'confirmed' AND end_time < $1 ORDER BY id`, now)
	if err != nil {
		return nil, fmt.Errorf("error querying ended reservations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning reservation ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}

// UpdateReservationStatuses moves the given confirmed reservations to
// newStatus. Rows that changed state in the meantime are left alone.
func (r *JobRepository) UpdateReservationStatuses(ctx context.Context, ids []string, newStatus string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.DB.ExecContext(ctx,
		`UPDATE reservations SET status = $1, updated_at = $2 WHERE id = ANY($3) AND status = 'confirmed'`,
		newStatus, at, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("error updating reservation statuses: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading rows affected: %w", err)
	}
	return n, nil
}
