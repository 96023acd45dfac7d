package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbooking/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

const reservationColumns = `id, user_id, venue_id, court_id, start_time, end_time, total_price, status, created_at, updated_at`

// ReservationRepository is the PostgreSQL SlotLedger. Overlap protection is
// the reservations_no_overlap exclusion constraint.
type ReservationRepository struct {
	DB *sql.DB
}

func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{DB: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *ReservationRepository) CommitReservation(ctx context.Context, res *db.Reservation) error {
	return insertReservation(ctx, r.DB, res)
}

func (r *ReservationRepository) CommitPaidReservation(ctx context.Context, res *db.Reservation, pay *db.PaymentRecord) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertReservation(ctx, tx, res); err != nil {
		return err
	}
	if pay.ID == "" {
		pay.ID = uuid.NewString()
	}
	pay.ReservationID = res.ID
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments
		(id, reservation_id, provider, correlation_id, payment_id, signature, amount_minor, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pay.ID, pay.ReservationID, pay.Provider, pay.CorrelationID, pay.PaymentID, pay.Signature,
		pay.AmountMinor, pay.Currency, pay.Status, pay.CreatedAt,
	)
	if err != nil {
		return mapWriteError("error inserting payment", err)
	}
	if err := tx.Commit(); err != nil {
		return mapWriteError("error committing reservation", err)
	}
	return nil
}

func insertReservation(ctx context.Context, ex execer, res *db.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO reservations
		(`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.ID, res.UserID, res.VenueID, res.CourtID, res.StartTime, res.EndTime,
		res.TotalPrice, res.Status, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("error inserting reservation", err)
	}
	return nil
}

// mapWriteError turns constraint violations into ledger errors.
func mapWriteError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqExclusionViolation:
			return ErrSlotConflict
		case pqUniqueViolation:
			if pqErr.Constraint == "payments_correlation_unique" || pqErr.Table == "payments" {
				return ErrDuplicatePayment
			}
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (r *ReservationRepository) FindOverlapping(ctx context.Context, courtID string, start, end time.Time) ([]db.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE court_id = $1 AND status = 'confirmed' AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, courtID, start, end)
	if err != nil {
		return nil, fmt.Errorf("error querying overlapping reservations: %w", err)
	}
	return scanReservations(rows)
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (*db.Reservation, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) ListReservationsByUser(ctx context.Context, userID, status string) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY start_time DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying user reservations: %w", err)
	}
	return scanReservations(rows)
}

func (r *ReservationRepository) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE reservations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, at)
	if err != nil {
		return fmt.Errorf("error updating reservation status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatusChanged
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*db.Reservation, error) {
	var res db.Reservation
	err := row.Scan(
		&res.ID, &res.UserID, &res.VenueID, &res.CourtID, &res.StartTime, &res.EndTime,
		&res.TotalPrice, &res.Status, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]db.Reservation, error) {
	defer rows.Close()
	var out []db.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reservation: %w", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating reservations: %w", err)
	}
	return out, nil
}
