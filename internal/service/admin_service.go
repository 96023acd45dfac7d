package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"courtbooking/internal/db"
	apperr "courtbooking/internal/errors"
	"courtbooking/internal/repository"
)

type AdminService struct {
	Reservations repository.ReservationLister
	Payments     repository.PaymentStore
	Cards        CardProvider
	Orders       OrderProvider
}

func NewAdminService(reservations repository.ReservationLister, payments repository.PaymentStore, cards CardProvider, orders OrderProvider) *AdminService {
	return &AdminService{Reservations: reservations, Payments: payments, Cards: cards, Orders: orders}
}

func (s *AdminService) ListReservations(ctx context.Context, f repository.ReservationFilter) ([]db.Reservation, error) {
	return s.Reservations.ListReservations(ctx, f)
}

func (s *AdminService) ListIncidents(ctx context.Context, status string) ([]db.PaymentIncident, error) {
	return s.Payments.ListIncidents(ctx, status)
}

// RefundIncident refunds a paid_but_unbooked payment through the provider
// that captured it, then closes the incident.
func (s *AdminService) RefundIncident(ctx context.Context, id string) (*db.PaymentIncident, error) {
	inc, err := s.Payments.GetIncident(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("incident %s not found", id)
		}
		return nil, err
	}
	if inc.Status != db.IncidentOpen {
		return nil, apperr.Validation("incident %s is already %s", id, inc.Status)
	}

	switch inc.Provider {
	case db.ProviderStripe:
		if s.Cards == nil {
			return nil, apperr.Provider(errors.New("card payments are not configured"))
		}
		err = s.Cards.Refund(ctx, inc.CorrelationID)
	case db.ProviderRazorpay:
		if s.Orders == nil {
			return nil, apperr.Provider(errors.New("order payments are not configured"))
		}
		err = s.Orders.Refund(ctx, inc.PaymentID, inc.AmountMinor)
	default:
		return nil, fmt.Errorf("incident %s has unknown provider %q", id, inc.Provider)
	}
	if err != nil {
		slog.Error("incident refund failed", "incident_id", id, "provider", inc.Provider, "error", err)
		return nil, apperr.Provider(err)
	}

	if err := s.Payments.MarkIncidentRefunded(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperr.Validation("incident %s was resolved concurrently", id)
		}
		return nil, err
	}
	inc.Status = db.IncidentRefunded
	slog.Info("incident refunded", "incident_id", id, "provider", inc.Provider, "correlation_id", inc.CorrelationID)
	return inc, nil
}
