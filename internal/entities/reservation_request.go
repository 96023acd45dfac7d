package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationRequest is the input of a direct or paid reservation. A set
// PriceOverride replaces the quoted price; only the payment flows set it, with
// the amount the provider actually captured.
type ReservationRequest struct {
	CourtID       string
	UserID        string
	UserEmail     string
	StartTime     time.Time
	EndTime       time.Time
	PriceOverride *decimal.Decimal
}
