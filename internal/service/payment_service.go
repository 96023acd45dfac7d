package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"courtbooking/internal/db"
	"courtbooking/internal/entities"
	apperr "courtbooking/internal/errors"
	"courtbooking/internal/mq"
	"courtbooking/internal/repository"
	"courtbooking/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Intent metadata keys. The metadata is the only source of booking
// parameters when an intent is finalized.
const (
	metaUserID    = "userId"
	metaVenueID   = "venueId"
	metaCourtID   = "courtId"
	metaSportType = "sportType"
	metaStart     = "startISO"
	metaEnd       = "endISO"
)

// PaymentService turns one provider confirmation into exactly one
// reservation. Finalize and VerifyOrder are idempotent per provider
// correlation id: a replay returns the stored result, a payment that could
// not be booked keeps returning the same paid_but_unbooked error.
type PaymentService struct {
	Reservations *ReservationService
	Catalog      repository.CatalogStore
	Ledger       repository.SlotLedger
	Payments     repository.PaymentStore
	Cards        CardProvider
	Orders       OrderProvider
	Notifier     Notifier
	Events       EventPublisher
	Location     *time.Location
	Currency     string
	// ProviderTimeout bounds every provider call. No ledger lock is held
	// while one is in flight.
	ProviderTimeout time.Duration
	Now             func() time.Time

	inflight singleflight.Group
}

func NewPaymentService(reservations *ReservationService, payments repository.PaymentStore, cards CardProvider,
	orders OrderProvider, currency string, providerTimeout time.Duration) *PaymentService {
	return &PaymentService{
		Reservations:    reservations,
		Catalog:         reservations.Catalog,
		Ledger:          reservations.Ledger,
		Payments:        payments,
		Cards:           cards,
		Orders:          orders,
		Notifier:        reservations.Notifier,
		Events:          reservations.Events,
		Location:        reservations.Location,
		Currency:        currency,
		ProviderTimeout: providerTimeout,
		Now:             time.Now,
	}
}

type preparedBooking struct {
	court  *db.Court
	start  time.Time
	end    time.Time
	amount decimal.Decimal
}

// prepare normalizes the request to [start, end) and picks the cheapest court
// of the sport that is open and has no confirmed overlap. The overlap check
// is advisory; the commit after payment decides.
func (s *PaymentService) prepare(ctx context.Context, req entities.BookingRequest) (*preparedBooking, error) {
	if req.VenueID == "" || req.SportType == "" || req.Date == "" || req.StartTime == "" {
		return nil, apperr.Validation("venueId, sportType, date, startTime and durationHours are required")
	}
	start, err := utils.CombineDateAndTime(req.Date, req.StartTime, s.Location)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	start, end, err := utils.SlotFromDuration(start, req.DurationHours)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	courts, err := s.Catalog.ListCourtsForSport(ctx, req.VenueID, req.SportType)
	if err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		return nil, apperr.NotFound("no %s court at venue %s", req.SportType, req.VenueID)
	}

	var chosen *db.Court
	anyOpen := false
	for i := range courts {
		c := &courts[i]
		open, err := utils.WithinOperatingHours(c.OpenTime, c.CloseTime, start, end, s.Location)
		if err != nil || !open {
			continue
		}
		anyOpen = true
		existing, err := s.Ledger.FindOverlapping(ctx, c.ID, start, end)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			chosen = c
			break
		}
	}
	if chosen == nil {
		if !anyOpen {
			return nil, apperr.Validation("no %s court is open for the requested time", req.SportType)
		}
		return nil, apperr.ErrSlotConflict
	}

	amount := PriceFor(chosen.PricePerHour, end.Sub(start))
	if MinorUnits(amount) <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if req.DisplayAmount != nil && !req.DisplayAmount.Equal(amount) {
		slog.Warn("client display amount differs from server price",
			"venue_id", req.VenueID, "court_id", chosen.ID, "client_amount", req.DisplayAmount.String(), "amount", amount.String())
	}
	return &preparedBooking{court: chosen, start: start.UTC(), end: end.UTC(), amount: amount}, nil
}

func (s *PaymentService) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.ProviderTimeout)
}

func (s *PaymentService) sharedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.ProviderTimeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, s.ProviderTimeout+sharedWorkBudget)
}

// CreateIntent prices the slot server side and opens a card payment intent
// whose metadata carries the booking parameters.
func (s *PaymentService) CreateIntent(ctx context.Context, userID string, req entities.BookingRequest) (*entities.IntentResponse, error) {
	if s.Cards == nil {
		return nil, apperr.Provider(errors.New("card payments are not configured"))
	}
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{
		metaUserID:    userID,
		metaVenueID:   p.court.VenueID,
		metaCourtID:   p.court.ID,
		metaSportType: p.court.SportType,
		metaStart:     p.start.Format(time.RFC3339),
		metaEnd:       p.end.Format(time.RFC3339),
	}
	pctx, cancel := s.providerCtx(ctx)
	defer cancel()
	intent, err := s.Cards.CreateIntent(pctx, MinorUnits(p.amount), s.Currency, meta)
	if err != nil {
		slog.Error("create payment intent failed", "user_id", userID, "court_id", p.court.ID, "error", err)
		return nil, apperr.Provider(err)
	}
	return &entities.IntentResponse{
		CorrelationID:      intent.ID,
		ClientOpaqueSecret: intent.ClientSecret,
		Amount:             p.amount,
		AmountMinor:        MinorUnits(p.amount),
		Currency:           s.Currency,
		CourtID:            p.court.ID,
		StartTime:          p.start,
		EndTime:            p.end,
	}, nil
}

// Finalize books the slot paid for by intentID. userID is the authenticated
// caller; an empty userID means a trusted server-side caller (webhook).
func (s *PaymentService) Finalize(ctx context.Context, userID, userEmail, intentID string) (*entities.PaymentResult, error) {
	if intentID == "" {
		return nil, apperr.Validation("correlationId is required")
	}
	if s.Cards == nil {
		return nil, apperr.Provider(errors.New("card payments are not configured"))
	}
	return s.once(ctx, db.ProviderStripe, intentID, userID, func(ctx context.Context) (*entities.PaymentResult, error) {
		return s.finalizeIntent(ctx, userID, userEmail, intentID)
	})
}

func (s *PaymentService) finalizeIntent(ctx context.Context, userID, userEmail, intentID string) (*entities.PaymentResult, error) {
	if done, err := s.lookupProcessed(ctx, db.ProviderStripe, intentID, userID); done != nil || err != nil {
		return done, err
	}

	pctx, cancel := s.providerCtx(ctx)
	intent, err := s.Cards.GetIntent(pctx, intentID)
	cancel()
	if err != nil {
		slog.Error("fetch payment intent failed", "correlation_id", intentID, "error", err)
		return nil, apperr.Provider(err)
	}
	if intent.Status != intentSucceeded {
		return nil, apperr.ErrPaymentNotSucceeded
	}

	owner := intent.Metadata[metaUserID]
	if userID != "" && owner != userID {
		return nil, apperr.NotFound("payment %s not found", intentID)
	}
	courtID := intent.Metadata[metaCourtID]
	start, errStart := time.Parse(time.RFC3339, intent.Metadata[metaStart])
	end, errEnd := time.Parse(time.RFC3339, intent.Metadata[metaEnd])
	if owner == "" || courtID == "" || errStart != nil || errEnd != nil {
		slog.Error("payment intent has no booking metadata", "correlation_id", intentID)
		return nil, apperr.Validation("payment %s was not created for a booking", intentID)
	}

	return s.bookPaid(ctx, paidBooking{
		provider:      db.ProviderStripe,
		correlationID: intentID,
		userID:        owner,
		userEmail:     userEmail,
		courtID:       courtID,
		start:         start,
		end:           end,
		amountMinor:   intent.AmountMinor,
		currency:      strings.ToLower(intent.Currency),
	})
}

// FinalizeFromWebhook runs Finalize for a provider-signed event. Outcomes
// that are already recorded, including paid_but_unbooked, count as handled.
func (s *PaymentService) FinalizeFromWebhook(ctx context.Context, intentID string) error {
	_, err := s.Finalize(ctx, "", "", intentID)
	if err == nil || errors.Is(err, apperr.ErrPaidButUnbooked) {
		return nil
	}
	return err
}

// CreateOrder is CreateIntent for the order/signature provider. The booking
// parameters are stored server side under the order id.
func (s *PaymentService) CreateOrder(ctx context.Context, userID string, req entities.BookingRequest) (*entities.OrderResponse, error) {
	if s.Orders == nil {
		return nil, apperr.Provider(errors.New("order payments are not configured"))
	}
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	amountMinor := MinorUnits(p.amount)
	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	notes := map[string]string{
		metaUserID:  userID,
		metaCourtID: p.court.ID,
		metaStart:   p.start.Format(time.RFC3339),
		metaEnd:     p.end.Format(time.RFC3339),
	}

	pctx, cancel := s.providerCtx(ctx)
	orderID, err := s.Orders.CreateOrder(pctx, amountMinor, strings.ToUpper(s.Currency), receipt, notes)
	cancel()
	if err != nil {
		slog.Error("create payment order failed", "user_id", userID, "court_id", p.court.ID, "error", err)
		return nil, apperr.Provider(err)
	}

	order := &db.PaymentOrder{
		OrderID:     orderID,
		UserID:      userID,
		VenueID:     p.court.VenueID,
		CourtID:     p.court.ID,
		SportType:   p.court.SportType,
		StartTime:   p.start,
		EndTime:     p.end,
		AmountMinor: amountMinor,
		Currency:    s.Currency,
		CreatedAt:   s.Now().UTC(),
	}
	if err := s.Payments.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return &entities.OrderResponse{
		OrderID:     orderID,
		KeyID:       s.Orders.KeyID(),
		Amount:      p.amount,
		AmountMinor: amountMinor,
		Currency:    s.Currency,
		CourtID:     p.court.ID,
		StartTime:   p.start,
		EndTime:     p.end,
	}, nil
}

// VerifyOrder authenticates a client-reported payment by its signature and
// books the stored order. Nothing is written when the signature is wrong.
func (s *PaymentService) VerifyOrder(ctx context.Context, userID, userEmail string, req entities.VerifyRequest) (*entities.PaymentResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, apperr.Validation("orderId, paymentId and signature are required")
	}
	if s.Orders == nil {
		return nil, apperr.Provider(errors.New("order payments are not configured"))
	}
	if !s.Orders.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		slog.Warn("security: payment signature mismatch",
			"order_id", req.OrderID, "payment_id", req.PaymentID, "user_id", userID)
		return nil, apperr.ErrInvalidSignature
	}
	return s.once(ctx, db.ProviderRazorpay, req.OrderID, userID, func(ctx context.Context) (*entities.PaymentResult, error) {
		return s.verifyOrder(ctx, userID, userEmail, req)
	})
}

func (s *PaymentService) verifyOrder(ctx context.Context, userID, userEmail string, req entities.VerifyRequest) (*entities.PaymentResult, error) {
	if done, err := s.lookupProcessed(ctx, db.ProviderRazorpay, req.OrderID, userID); done != nil || err != nil {
		return done, err
	}
	order, err := s.Payments.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("order %s not found", req.OrderID)
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order %s not found", req.OrderID)
	}
	if (req.CourtID != "" && req.CourtID != order.CourtID) ||
		(!req.StartTime.IsZero() && !req.StartTime.Equal(order.StartTime)) ||
		(!req.EndTime.IsZero() && !req.EndTime.Equal(order.EndTime)) {
		slog.Warn("verify request differs from stored order; using stored order",
			"order_id", order.OrderID, "user_id", userID,
			"client_court_id", req.CourtID, "court_id", order.CourtID)
	}

	return s.bookPaid(ctx, paidBooking{
		provider:      db.ProviderRazorpay,
		correlationID: order.OrderID,
		paymentID:     req.PaymentID,
		signature:     req.Signature,
		userID:        order.UserID,
		userEmail:     userEmail,
		courtID:       order.CourtID,
		start:         order.StartTime,
		end:           order.EndTime,
		amountMinor:   order.AmountMinor,
		currency:      order.Currency,
	})
}

type paidBooking struct {
	provider      string
	correlationID string
	paymentID     string
	signature     string
	userID        string
	userEmail     string
	courtID       string
	start         time.Time
	end           time.Time
	amountMinor   int64
	currency      string
}

// sharedWorkBudget bounds the ledger work of a collapsed call on top of
// ProviderTimeout.
const sharedWorkBudget = 15 * time.Second

// once collapses concurrent calls for the same correlation id and caller in
// this process. Across processes the ledger constraints do the same job.
// The shared work is detached from the first caller's cancellation so the
// callers that joined it are not failed by one disconnect.
func (s *PaymentService) once(ctx context.Context, provider, correlationID, userID string,
	fn func(context.Context) (*entities.PaymentResult, error)) (*entities.PaymentResult, error) {
	v, err, _ := s.inflight.Do(provider+"|"+correlationID+"|"+userID, func() (any, error) {
		wctx, cancel := s.sharedCtx(ctx)
		defer cancel()
		return fn(wctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.PaymentResult), nil
}

// lookupProcessed returns the stored outcome for a correlation id: the
// booked result, a paid_but_unbooked error, or nil, nil when it has not been
// processed.
func (s *PaymentService) lookupProcessed(ctx context.Context, provider, correlationID, userID string) (*entities.PaymentResult, error) {
	pay, err := s.Payments.GetPaymentByCorrelation(ctx, provider, correlationID)
	switch {
	case err == nil:
		res, err := s.Ledger.GetReservation(ctx, pay.ReservationID)
		if err != nil {
			return nil, fmt.Errorf("payment %s points at missing reservation: %w", pay.ID, err)
		}
		if userID != "" && res.UserID != userID {
			return nil, apperr.NotFound("payment %s not found", correlationID)
		}
		return &entities.PaymentResult{Reservation: res, Payment: pay, AlreadyProcessed: true}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	inc, err := s.Payments.GetIncidentByCorrelation(ctx, provider, correlationID)
	switch {
	case err == nil:
		if userID != "" && inc.UserID != userID {
			return nil, apperr.NotFound("payment %s not found", correlationID)
		}
		return nil, apperr.PaidButUnbooked(inc.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return nil, nil
}

func (s *PaymentService) bookPaid(ctx context.Context, b paidBooking) (*entities.PaymentResult, error) {
	price := FromMinorUnits(b.amountMinor)
	pay := &db.PaymentRecord{
		Provider:      b.provider,
		CorrelationID: b.correlationID,
		PaymentID:     b.paymentID,
		Signature:     b.signature,
		AmountMinor:   b.amountMinor,
		Currency:      b.currency,
		Status:        db.PaymentSucceeded,
	}
	res, err := s.Reservations.ReservePaid(ctx, entities.ReservationRequest{
		CourtID:       b.courtID,
		UserID:        b.userID,
		UserEmail:     b.userEmail,
		StartTime:     b.start,
		EndTime:       b.end,
		PriceOverride: &price,
	}, pay)
	if err == nil {
		return &entities.PaymentResult{Reservation: res, Payment: pay}, nil
	}

	duplicate := errors.Is(err, repository.ErrDuplicatePayment)
	if duplicate || errors.Is(err, apperr.ErrSlotConflict) {
		// A concurrent call for the same payment may have committed first.
		done, lerr := s.lookupProcessed(ctx, b.provider, b.correlationID, b.userID)
		if done != nil || lerr != nil {
			return done, lerr
		}
		if duplicate {
			return nil, fmt.Errorf("payment %s/%s recorded but not readable: %w", b.provider, b.correlationID, err)
		}
		return nil, s.recordUnbooked(ctx, b, "slot was booked by someone else after payment")
	}

	// The payment is captured, so a court that vanished or changed its hours
	// since checkout is also unbookable. Storage errors are left retryable.
	var he *apperr.HTTPError
	if errors.As(err, &he) && (he.Kind == apperr.KindValidation || he.Kind == apperr.KindNotFound) {
		return nil, s.recordUnbooked(ctx, b, he.Message)
	}
	return nil, err
}

func (s *PaymentService) recordUnbooked(ctx context.Context, b paidBooking, reason string) error {
	inc := &db.PaymentIncident{
		Provider:      b.provider,
		CorrelationID: b.correlationID,
		PaymentID:     b.paymentID,
		UserID:        b.userID,
		CourtID:       b.courtID,
		StartTime:     b.start,
		EndTime:       b.end,
		AmountMinor:   b.amountMinor,
		Currency:      b.currency,
		Reason:        reason,
		Status:        db.IncidentOpen,
		CreatedAt:     s.Now().UTC(),
	}
	stored, created, err := s.Payments.SaveIncident(ctx, inc)
	if err != nil {
		slog.Error("paid but unbooked; incident could not be stored",
			"provider", b.provider, "correlation_id", b.correlationID, "user_id", b.userID,
			"court_id", b.courtID, "start", b.start, "end", b.end, "error", err)
		return err
	}
	if !created {
		return apperr.PaidButUnbooked(stored.ID)
	}

	slog.Error("paid but unbooked",
		"incident_id", stored.ID, "provider", b.provider, "correlation_id", b.correlationID,
		"payment_id", b.paymentID, "user_id", b.userID, "court_id", b.courtID,
		"start", b.start, "end", b.end, "amount_minor", b.amountMinor, "reason", reason)
	s.Notifier.PaidButUnbooked(*stored)
	if err := s.Events.Publish(ctx, mq.EventPaymentUnbooked, b.correlationID, stored); err != nil {
		slog.Warn("event publish failed", "event", mq.EventPaymentUnbooked, "correlation_id", b.correlationID, "error", err)
	}
	return apperr.PaidButUnbooked(stored.ID)
}
