package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"courtbooking/internal/db"

	"github.com/google/uuid"
)

const incidentColumns = `id, provider, correlation_id, payment_id, user_id, court_id, start_time, end_time, amount_minor, currency, reason, status, created_at`

// PaymentRepository is the PostgreSQL PaymentStore.
type PaymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) GetPaymentByCorrelation(ctx context.Context, provider, correlationID string) (*db.PaymentRecord, error) {
	var p db.PaymentRecord
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, reservation_id, provider, correlation_id, payment_id, signature, amount_minor, currency, status, created_at
		FROM payments WHERE provider = $1 AND correlation_id = $2`, provider, correlationID).Scan(
		&p.ID, &p.ReservationID, &p.Provider, &p.CorrelationID, &p.PaymentID, &p.Signature,
		&p.AmountMinor, &p.Currency, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying payment %s/%s: %w", provider, correlationID, err)
	}
	return &p, nil
}

func (r *PaymentRepository) SaveOrder(ctx context.Context, o *db.PaymentOrder) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO payment_orders
		(order_id, user_id, venue_id, court_id, sport_type, start_time, end_time, amount_minor, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.OrderID, o.UserID, o.VenueID, o.CourtID, o.SportType, o.StartTime, o.EndTime, o.AmountMinor, o.Currency, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting payment order: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetOrder(ctx context.Context, orderID string) (*db.PaymentOrder, error) {
	var o db.PaymentOrder
	err := r.DB.QueryRowContext(ctx, `
		SELECT order_id, user_id, venue_id, court_id, sport_type, start_time, end_time, amount_minor, currency, created_at
		FROM payment_orders WHERE order_id = $1`, orderID).Scan(
		&o.OrderID, &o.UserID, &o.VenueID, &o.CourtID, &o.SportType, &o.StartTime, &o.EndTime, &o.AmountMinor, &o.Currency, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying payment order: %w", err)
	}
	return &o, nil
}

func (r *PaymentRepository) SaveIncident(ctx context.Context, inc *db.PaymentIncident) (*db.PaymentIncident, bool, error) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	result, err := r.DB.ExecContext(ctx, `
		INSERT INTO payment_incidents
		(`+incidentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (provider, correlation_id) DO NOTHING`,
		inc.ID, inc.Provider, inc.CorrelationID, inc.PaymentID, inc.UserID, inc.CourtID, inc.StartTime, inc.EndTime,
		inc.AmountMinor, inc.Currency, inc.Reason, inc.Status, inc.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("error inserting payment incident: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 1 {
		return inc, true, nil
	}
	existing, err := r.GetIncidentByCorrelation(ctx, inc.Provider, inc.CorrelationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PaymentRepository) GetIncident(ctx context.Context, id string) (*db.PaymentIncident, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM payment_incidents WHERE id = $1`, id)
	return scanIncidentRow(row)
}

func (r *PaymentRepository) GetIncidentByCorrelation(ctx context.Context, provider, correlationID string) (*db.PaymentIncident, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM payment_incidents WHERE provider = $1 AND correlation_id = $2`,
		provider, correlationID)
	return scanIncidentRow(row)
}

func (r *PaymentRepository) ListIncidents(ctx context.Context, status string) ([]db.PaymentIncident, error) {
	query := `SELECT ` + incidentColumns + ` FROM payment_incidents`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying payment incidents: %w", err)
	}
	defer rows.Close()

	var out []db.PaymentIncident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment incident: %w", err)
		}
		out = append(out, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating payment incidents: %w", err)
	}
	return out, nil
}

func (r *PaymentRepository) MarkIncidentRefunded(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE payment_incidents SET status = $2 WHERE id = $1 AND status = $3`,
		id, db.IncidentRefunded, db.IncidentOpen)
	if err != nil {
		return fmt.Errorf("error updating payment incident: %w", err)
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

func scanIncident(row rowScanner) (*db.PaymentIncident, error) {
	var inc db.PaymentIncident
	err := row.Scan(
		&inc.ID, &inc.Provider, &inc.CorrelationID, &inc.PaymentID, &inc.UserID, &inc.CourtID,
		&inc.StartTime, &inc.EndTime, &inc.AmountMinor, &inc.Currency, &inc.Reason, &inc.Status, &inc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func scanIncidentRow(row *sql.Row) (*db.PaymentIncident, error) {
	inc, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying payment incident: %w", err)
	}
	return inc, nil
}
