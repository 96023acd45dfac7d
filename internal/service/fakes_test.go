package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"courtbooking/internal/db"
	"courtbooking/internal/repository"

	"github.com/shopspring/decimal"
)

var ist = time.FixedZone("IST", 5*3600+1800)

const (
	venueID      = "venue-1"
	razorpayKey  = "rzp_secret"
	testCurrency = "inr"
)

func testCourts() []db.Court {
	return []db.Court{
		{ID: "court-a", VenueID: venueID, Name: "Court A", SportType: "badminton", PricePerHour: decimal.NewFromInt(500), OpenTime: "06:00", CloseTime: "23:00"},
		{ID: "court-b", VenueID: venueID, Name: "Court B", SportType: "badminton", PricePerHour: decimal.NewFromInt(600), OpenTime: "06:00", CloseTime: "23:00"},
		{ID: "court-t", VenueID: venueID, Name: "Centre", SportType: "tennis", PricePerHour: decimal.NewFromInt(800)},
	}
}

// at is a wall clock time on 10 March 2026 at the venue.
func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, ist)
}

type fakeCards struct {
	mu      sync.Mutex
	n       int
	intents map[string]*ProviderIntent
	refunds []string
	err     error
	// gate, when set, holds GetIntent until it is closed or ctx ends.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeCards() *fakeCards {
	return &fakeCards{intents: map[string]*ProviderIntent{}}
}

func (f *fakeCards) CreateIntent(_ context.Context, amountMinor int64, currency string, metadata map[string]string) (*ProviderIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	id := fmt.Sprintf("pi_%d", f.n)
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	f.intents[id] = &ProviderIntent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method",
		AmountMinor: amountMinor, Currency: currency, Metadata: meta}
	return f.intents[id], nil
}

func (f *fakeCards) GetIntent(ctx context.Context, id string) (*ProviderIntent, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pi, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", id)
	}
	out := *pi
	return &out, nil
}

func (f *fakeCards) Refund(_ context.Context, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, intentID)
	return nil
}

func (f *fakeCards) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Status = intentSucceeded
}

type fakeOrders struct {
	mu      sync.Mutex
	n       int
	notes   map[string]map[string]string
	refunds []string
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{notes: map[string]map[string]string{}}
}

func (f *fakeOrders) KeyID() string { return "rzp_test_key" }

func (f *fakeOrders) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	id := fmt.Sprintf("order_%d", f.n)
	f.notes[id] = notes
	return id, nil
}

func (f *fakeOrders) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyOrderSignature(razorpayKey, orderID, paymentID, signature)
}

func (f *fakeOrders) Refund(_ context.Context, paymentID string, amountMinor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, fmt.Sprintf("%s:%d", paymentID, amountMinor))
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []string
	cancelled []string
	incidents []db.PaymentIncident
}

func (n *recordingNotifier) BookingConfirmed(res db.Reservation, _ db.Court, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, res.ID)
}

func (n *recordingNotifier) BookingCancelled(res db.Reservation, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, res.ID)
}

func (n *recordingNotifier) PaidButUnbooked(inc db.PaymentIncident) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.incidents = append(n.incidents, inc)
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (e *recordingEvents) Publish(_ context.Context, eventType, _ string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, eventType)
	return nil
}

func (e *recordingEvents) count(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	ledger       *repository.MemoryLedger
	quotes       *QuoteService
	reservations *ReservationService
	payments     *PaymentService
	cards        *fakeCards
	orders       *fakeOrders
	notifier     *recordingNotifier
	events       *recordingEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	ledger := repository.NewMemoryLedger()
	catalog := repository.NewMemoryCatalog(testCourts()...)
	notifier := &recordingNotifier{}
	events := &recordingEvents{}
	cards := newFakeCards()
	orders := newFakeOrders()

	quotes := NewQuoteService(catalog, testCurrency)
	reservations := NewReservationService(ledger, catalog, quotes, notifier, events, ist)
	reservations.Now = now
	payments := NewPaymentService(reservations, ledger, cards, orders, testCurrency, time.Second)
	payments.Now = now

	return &testEnv{
		ledger:       ledger,
		quotes:       quotes,
		reservations: reservations,
		payments:     payments,
		cards:        cards,
		orders:       orders,
		notifier:     notifier,
		events:       events,
	}
}

func (e *testEnv) allReservations(t *testing.T) []db.Reservation {
	t.Helper()
	rs, err := e.ledger.ListReservations(context.Background(), repository.ReservationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	return rs
}
