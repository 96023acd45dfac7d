package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"courtbooking/internal/db"
)

type AdminRepository struct {
	DB *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{DB: db}
}

func (r *AdminRepository) ListReservations(ctx context.Context, f ReservationFilter) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE 1=1`
	args := []any{}
	idx := 1

	if f.Date != "" {
		query += " AND (start_time AT TIME ZONE 'UTC')::date = $" + strconv.Itoa(idx)
		args = append(args, f.Date)
		idx++
	}
	if f.CourtID != "" {
		query += " AND court_id = $" + strconv.Itoa(idx)
		args = append(args, f.CourtID)
		idx++
	}
	if f.Status != "" {
		query += " AND status = $" + strconv.Itoa(idx)
		args = append(args, f.Status)
	}
	query += " ORDER BY start_time DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing reservations: %w", err)
	}
	return scanReservations(rows)
}
