package api

import (
	"time"

	"courtbooking/internal/entities"
	apperr "courtbooking/internal/errors"

	"github.com/shopspring/decimal"
)

// Reservation
type CreateReservationRequest struct {
	CourtID   string    `json:"courtId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

func (r CreateReservationRequest) validate() error {
	if r.CourtID == "" || r.StartTime.IsZero() || r.EndTime.IsZero() {
		return apperr.Validation("courtId, startTime and endTime are required")
	}
	if !r.EndTime.After(r.StartTime) {
		return apperr.Validation("endTime must be after startTime")
	}
	return nil
}

// Payments
type BookingRequest struct {
	FacilityID    string  `json:"facilityId"`
	VenueID       string  `json:"venueId"`
	SportType     string  `json:"sportType"`
	Date          string  `json:"date"`
	StartTime     string  `json:"startTime"`
	DurationHours float64 `json:"durationHours"`
	// AmountOverride is what the client displayed. Pricing ignores it.
	AmountOverride *decimal.Decimal `json:"amountOverride,omitempty"`
}

func (r BookingRequest) toEntity() (entities.BookingRequest, error) {
	venue := r.VenueID
	if venue == "" {
		venue = r.FacilityID
	}
	if venue == "" || r.SportType == "" || r.Date == "" || r.StartTime == "" || r.DurationHours == 0 {
		return entities.BookingRequest{}, apperr.Validation("facilityId, sportType, date, startTime and durationHours are required")
	}
	if r.DurationHours < 0 {
		return entities.BookingRequest{}, apperr.Validation("durationHours must be positive")
	}
	return entities.BookingRequest{
		VenueID:       venue,
		SportType:     r.SportType,
		Date:          r.Date,
		StartTime:     r.StartTime,
		DurationHours: r.DurationHours,
		DisplayAmount: r.AmountOverride,
	}, nil
}

type FinalizeRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	CorrelationID   string `json:"correlationId"`
}

func (r FinalizeRequest) intentID() (string, error) {
	if r.PaymentIntentID != "" {
		return r.PaymentIntentID, nil
	}
	if r.CorrelationID != "" {
		return r.CorrelationID, nil
	}
	return "", apperr.Validation("paymentIntentId is required")
}

// VerifyOrderRequest is what the checkout widget hands back, plus the slot
// the client believes it paid for.
type VerifyOrderRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	CourtID   string `json:"courtId"`
	StartISO  string `json:"startISO"`
	EndISO    string `json:"endISO"`
}

func (r VerifyOrderRequest) toEntity() (entities.VerifyRequest, error) {
	if r.OrderID == "" || r.PaymentID == "" || r.Signature == "" {
		return entities.VerifyRequest{}, apperr.Validation("Missing Razorpay payment fields")
	}
	v := entities.VerifyRequest{OrderID: r.OrderID, PaymentID: r.PaymentID, Signature: r.Signature, CourtID: r.CourtID}
	// The stored order is authoritative, so unparseable hints are dropped.
	if t, err := time.Parse(time.RFC3339, r.StartISO); err == nil {
		v.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, r.EndISO); err == nil {
		v.EndTime = t
	}
	return v, nil
}

// Admin
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}
