package repository

import (
	"context"
	"errors"
	"time"

	"courtbooking/internal/db"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrSlotConflict means a confirmed reservation on the same court overlaps.
	ErrSlotConflict = errors.New("slot conflict")
	// ErrDuplicatePayment means (provider, correlation id) is already recorded.
	ErrDuplicatePayment = errors.New("duplicate payment")
	// ErrStatusChanged means a conditional status update found the row in
	// another state.
	ErrStatusChanged = errors.New("reservation status changed")
)

// SlotLedger stores reservations and owns the no-overlap rule: per court, the
// confirmed reservations are pairwise disjoint on [start, end).
type SlotLedger interface {
	// CommitReservation inserts a confirmed reservation or returns
	// ErrSlotConflict. It is atomic with respect to concurrent commits.
	CommitReservation(ctx context.Context, res *db.Reservation) error
	// CommitPaidReservation is CommitReservation plus the payment record in
	// the same unit of work. Neither row exists unless both do.
	CommitPaidReservation(ctx context.Context, res *db.Reservation, pay *db.PaymentRecord) error
	// FindOverlapping is advisory; a later commit may still conflict.
	FindOverlapping(ctx context.Context, courtID string, start, end time.Time) ([]db.Reservation, error)
	GetReservation(ctx context.Context, id string) (*db.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID, status string) ([]db.Reservation, error)
	// TransitionStatus moves id from one status to another, or returns
	// ErrStatusChanged when it is no longer in from.
	TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error
}

// PaymentStore keeps payment records, razorpay orders and incidents.
type PaymentStore interface {
	GetPaymentByCorrelation(ctx context.Context, provider, correlationID string) (*db.PaymentRecord, error)
	SaveOrder(ctx context.Context, order *db.PaymentOrder) error
	GetOrder(ctx context.Context, orderID string) (*db.PaymentOrder, error)
	// SaveIncident stores inc unless one exists for its provider and
	// correlation id. It returns the stored incident and whether it was new.
	SaveIncident(ctx context.Context, inc *db.PaymentIncident) (*db.PaymentIncident, bool, error)
	GetIncident(ctx context.Context, id string) (*db.PaymentIncident, error)
	GetIncidentByCorrelation(ctx context.Context, provider, correlationID string) (*db.PaymentIncident, error)
	ListIncidents(ctx context.Context, status string) ([]db.PaymentIncident, error)
	MarkIncidentRefunded(ctx context.Context, id string) error
}

type ReservationFilter struct {
	Date    string // YYYY-MM-DD, matched on the start time in UTC
	CourtID string
	Status  string
}

// ReservationLister backs the admin listing.
type ReservationLister interface {
	ListReservations(ctx context.Context, f ReservationFilter) ([]db.Reservation, error)
}

// ReservationCompleter backs the completion job.
type ReservationCompleter interface {
	EndedReservationIDs(ctx context.Context, now time.Time) ([]string, error)
	UpdateReservationStatuses(ctx context.Context, ids []string, newStatus string, at time.Time) (int64, error)
}
