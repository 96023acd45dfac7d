package db

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	ProviderStripe   = "stripe"
	ProviderRazorpay = "razorpay"
)

const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

const (
	IncidentOpen     = "open"
	IncidentRefunded = "refunded"
)

type Venue struct {
	ID      string
	Name    string
	OwnerID string
}

// Court is a bookable unit. OpenTime and CloseTime are "HH:MM" in venue local
// time; both empty means the court has no operating-hours restriction.
type Court struct {
	ID           string          `json:"id"`
	VenueID      string          `json:"venueId"`
	Name         string          `json:"name"`
	SportType    string          `json:"sportType"`
	PricePerHour decimal.Decimal `json:"pricePerHour"`
	OpenTime     string          `json:"openTime,omitempty"`
	CloseTime    string          `json:"closeTime,omitempty"`
}

type Reservation struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	VenueID    string          `json:"venueId"`
	CourtID    string          `json:"courtId"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    time.Time       `json:"endTime"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Overlaps reports whether the reservation intersects [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// PaymentRecord links a provider confirmation to the reservation it produced.
// CorrelationID is the intent id for stripe and the order id for razorpay.
type PaymentRecord struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservationId"`
	Provider      string    `json:"provider"`
	CorrelationID string    `json:"correlationId"`
	PaymentID     string    `json:"paymentId,omitempty"`
	Signature     string    `json:"-"`
	AmountMinor   int64     `json:"amountMinor"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PaymentOrder keeps the booking parameters of a razorpay order server side.
type PaymentOrder struct {
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	VenueID     string    `json:"venueId"`
	CourtID     string    `json:"courtId"`
	SportType   string    `json:"sportType"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	AmountMinor int64     `json:"amountMinor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PaymentIncident records a captured payment that could not be turned into a
// reservation. Support resolves it, usually by refunding.
type PaymentIncident struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	CorrelationID string    `json:"correlationId"`
	PaymentID     string    `json:"paymentId,omitempty"`
	UserID        string    `json:"userId"`
	CourtID       string    `json:"courtId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	AmountMinor   int64     `json:"amountMinor"`
	Currency      string    `json:"currency"`
	Reason        string    `json:"reason"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Admin struct {
	ID           string
	Email        string
	PasswordHash string
}
