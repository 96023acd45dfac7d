package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courtbooking/internal/db"
	"courtbooking/internal/entities"
	apperr "courtbooking/internal/errors"
	"courtbooking/internal/mq"
	"courtbooking/internal/repository"
	"courtbooking/internal/utils"

	"github.com/shopspring/decimal"
)

// Notifier delivers best-effort messages. Implementations must not block.
type Notifier interface {
	BookingConfirmed(res db.Reservation, court db.Court, toEmail string)
	BookingCancelled(res db.Reservation, toEmail string)
	PaidButUnbooked(inc db.PaymentIncident)
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, correlationID string, payload any) error
}

// ReservationService is the only code path that creates confirmed
// reservations.
type ReservationService struct {
	Ledger   repository.SlotLedger
	Catalog  repository.CatalogStore
	Quotes   *QuoteService
	Notifier Notifier
	Events   EventPublisher
	Location *time.Location
	Now      func() time.Time
}

func NewReservationService(ledger repository.SlotLedger, catalog repository.CatalogStore, quotes *QuoteService,
	notifier Notifier, events EventPublisher, loc *time.Location) *ReservationService {
	return &ReservationService{
		Ledger:   ledger,
		Catalog:  catalog,
		Quotes:   quotes,
		Notifier: notifier,
		Events:   events,
		Location: loc,
		Now:      time.Now,
	}
}

// Reserve books a court for [StartTime, EndTime). It fails with a slot
// conflict when a confirmed reservation on the court overlaps.
func (s *ReservationService) Reserve(ctx context.Context, req entities.ReservationRequest) (*db.Reservation, error) {
	return s.reserve(ctx, req, nil)
}

// ReservePaid is Reserve plus the payment record, committed together. It
// returns repository.ErrDuplicatePayment when the correlation id is taken.
func (s *ReservationService) ReservePaid(ctx context.Context, req entities.ReservationRequest, pay *db.PaymentRecord) (*db.Reservation, error) {
	return s.reserve(ctx, req, pay)
}

func (s *ReservationService) reserve(ctx context.Context, req entities.ReservationRequest, pay *db.PaymentRecord) (*db.Reservation, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, apperr.Validation("endTime must be after startTime")
	}
	court, err := s.Catalog.GetCourt(ctx, req.CourtID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("court %s not found", req.CourtID)
		}
		return nil, err
	}
	ok, err := utils.WithinOperatingHours(court.OpenTime, court.CloseTime, req.StartTime, req.EndTime, s.Location)
	if err != nil {
		return nil, fmt.Errorf("court %s has invalid operating hours: %w", court.ID, err)
	}
	if !ok {
		return nil, apperr.Validation("court %s is open %s-%s", court.ID, court.OpenTime, court.CloseTime)
	}

	// Fast path only. The ledger commit is what actually decides.
	existing, err := s.Ledger.FindOverlapping(ctx, court.ID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.ErrSlotConflict
	}

	var price decimal.Decimal
	if req.PriceOverride != nil {
		price = *req.PriceOverride
	} else {
		price = PriceFor(court.PricePerHour, req.EndTime.Sub(req.StartTime))
	}
	price = ChargedAmount(price)

	now := s.Now().UTC()
	res := &db.Reservation{
		UserID:     req.UserID,
		VenueID:    court.VenueID,
		CourtID:    court.ID,
		StartTime:  req.StartTime.UTC(),
		EndTime:    req.EndTime.UTC(),
		TotalPrice: price,
		Status:     db.StatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if pay == nil {
		err = s.Ledger.CommitReservation(ctx, res)
	} else {
		pay.CreatedAt = now
		err = s.Ledger.CommitPaidReservation(ctx, res, pay)
	}
	if err != nil {
		if errors.Is(err, repository.ErrSlotConflict) {
			return nil, apperr.ErrSlotConflict
		}
		return nil, err
	}

	slog.Info("reservation confirmed", "reservation_id", res.ID, "court_id", res.CourtID,
		"user_id", res.UserID, "start", res.StartTime, "end", res.EndTime)
	s.publish(ctx, mq.EventBookingConfirmed, res.ID, res)
	if req.UserEmail != "" {
		s.Notifier.BookingConfirmed(*res, *court, req.UserEmail)
	}
	return res, nil
}

// Cancel cancels a confirmed reservation owned by userID before it starts.
// Reservations of other users are reported as not found.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, userID, userEmail string) (*db.Reservation, error) {
	res, err := s.Get(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if res.Status != db.StatusConfirmed {
		return nil, apperr.Validation("only confirmed reservations can be cancelled")
	}
	now := s.Now().UTC()
	if !now.Before(res.StartTime) {
		return nil, apperr.ErrTooLateToCancel
	}
	if err := s.Ledger.TransitionStatus(ctx, res.ID, db.StatusConfirmed, db.StatusCancelled, now); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperr.Validation("only confirmed reservations can be cancelled")
		}
		return nil, err
	}
	res.Status = db.StatusCancelled
	res.UpdatedAt = now

	slog.Info("reservation cancelled", "reservation_id", res.ID, "user_id", userID)
	s.publish(ctx, mq.EventBookingCancelled, res.ID, res)
	if userEmail != "" {
		s.Notifier.BookingCancelled(*res, userEmail)
	}
	return res, nil
}

func (s *ReservationService) Get(ctx context.Context, reservationID, userID string) (*db.Reservation, error) {
	res, err := s.Ledger.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("reservation %s not found", reservationID)
		}
		return nil, err
	}
	if res.UserID != userID {
		return nil, apperr.NotFound("reservation %s not found", reservationID)
	}
	return res, nil
}

func (s *ReservationService) ListMine(ctx context.Context, userID, status string) (*entities.ReservationsList, error) {
	rs, err := s.Ledger.ListReservationsByUser(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	list := &entities.ReservationsList{Total: len(rs), Reservations: make([]entities.ReservationView, 0, len(rs))}
	for _, r := range rs {
		list.Reservations = append(list.Reservations, entities.ReservationView{
			Reservation: r,
			CanCancel:   r.Status == db.StatusConfirmed && now.Before(r.StartTime),
		})
	}
	return list, nil
}

func (s *ReservationService) publish(ctx context.Context, eventType, correlationID string, payload any) {
	if err := s.Events.Publish(ctx, eventType, correlationID, payload); err != nil {
		slog.Warn("event publish failed", "event", eventType, "correlation_id", correlationID, "error", err)
	}
}
