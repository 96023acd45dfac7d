package entities

import (
	"time"

	"courtbooking/internal/db"

	"github.com/shopspring/decimal"
)

// BookingRequest describes a slot by venue, sport and local wall clock. The
// court is picked server side.
type BookingRequest struct {
	VenueID       string
	SportType     string
	Date          string // YYYY-MM-DD
	StartTime     string // HH:MM
	DurationHours float64
	// DisplayAmount is what the client showed the user. It is never used for
	// pricing.
	DisplayAmount *decimal.Decimal
}

type IntentResponse struct {
	CorrelationID      string          `json:"correlationId"`
	ClientOpaqueSecret string          `json:"clientSecret"`
	Amount             decimal.Decimal `json:"amount"`
	AmountMinor        int64           `json:"amountMinor"`
	Currency           string          `json:"currency"`
	CourtID            string          `json:"courtId"`
	StartTime          time.Time       `json:"startTime"`
	EndTime            time.Time       `json:"endTime"`
}

type OrderResponse struct {
	OrderID     string          `json:"orderId"`
	KeyID       string          `json:"keyId"`
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amountMinor"`
	Currency    string          `json:"currency"`
	CourtID     string          `json:"courtId"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     time.Time       `json:"endTime"`
}

// VerifyRequest is the client's report of a completed razorpay checkout.
// CourtID and the times are informational; the stored order wins.
type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	CourtID   string
	StartTime time.Time
	EndTime   time.Time
}

// PaymentResult is the outcome of a successful finalize or verify.
// AlreadyProcessed is set when the correlation id had been booked before.
type PaymentResult struct {
	Reservation      *db.Reservation   `json:"reservation"`
	Payment          *db.PaymentRecord `json:"payment"`
	AlreadyProcessed bool              `json:"alreadyProcessed"`
}
