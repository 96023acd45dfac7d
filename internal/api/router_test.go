package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"courtbooking/internal/auth"
	"courtbooking/internal/db"
	"courtbooking/internal/mq"
	"courtbooking/internal/repository"
	"courtbooking/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "api-test-secret"

var ist = time.FixedZone("IST", 5*3600+1800)

type stubCards struct {
	mu      sync.Mutex
	n       int
	intents map[string]*service.ProviderIntent
}

func (s *stubCards) CreateIntent(_ context.Context, amountMinor int64, currency string, metadata map[string]string) (*service.ProviderIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	pi := &service.ProviderIntent{ID: fmt.Sprintf("pi_%d", s.n), ClientSecret: "secret", Status: "requires_payment_method",
		AmountMinor: amountMinor, Currency: currency, Metadata: metadata}
	s.intents[pi.ID] = pi
	return pi, nil
}

func (s *stubCards) GetIntent(_ context.Context, id string) (*service.ProviderIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ok := s.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	out := *pi
	return &out, nil
}

func (s *stubCards) Refund(context.Context, string) error { return nil }

func (s *stubCards) succeed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[id].Status = "succeeded"
}

// stubWebhooks accepts deliveries signed "good" whose body is an intent id.
type stubWebhooks struct{}

func (stubWebhooks) ParseSucceededIntent(payload []byte, sig string) (string, error) {
	if sig != "good" {
		return "", errors.New("bad signature")
	}
	return string(payload), nil
}

type nopNotifier struct{}

func (nopNotifier) BookingConfirmed(db.Reservation, db.Court, string) {}
func (nopNotifier) BookingCancelled(db.Reservation, string)           {}
func (nopNotifier) PaidButUnbooked(db.PaymentIncident)                {}

type testServer struct {
	handler http.Handler
	cards   *stubCards
	ledger  *repository.MemoryLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ledger := repository.NewMemoryLedger()
	catalog := repository.NewMemoryCatalog(
		db.Court{ID: "court-a", VenueID: "venue-1", Name: "Court A", SportType: "badminton", PricePerHour: decimal.NewFromInt(500), OpenTime: "06:00", CloseTime: "23:00"},
	)
	cards := &stubCards{intents: map[string]*service.ProviderIntent{}}
	orders := service.NewRazorpayService("rzp_test_key", "rzp_secret", time.Second)

	quotes := service.NewQuoteService(catalog, "inr")
	reservations := service.NewReservationService(ledger, catalog, quotes, nopNotifier{}, mq.NopPublisher{}, ist)
	reservations.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	payments := service.NewPaymentService(reservations, ledger, cards, orders, "inr", time.Second)

	h := NewRouter(Routes{
		Auth:         auth.NewAuthenticator(jwtSecret),
		Reservations: NewUserReservationHandler(reservations, quotes),
		Payments:     NewPaymentHandler(payments, stubWebhooks{}),
		Admin:        NewAdminHandler(service.NewAdminService(ledger, ledger, cards, orders)),
	})
	return &testServer{handler: h, cards: cards, ledger: ledger}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := auth.Claims{UserID: userID, Email: userID + "@example.com", Role: role,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func errorKind(out map[string]any) string {
	e, _ := out["error"].(map[string]any)
	k, _ := e["kind"].(string)
	return k
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec, out := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestAPI_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	rec, out := s.do(t, http.MethodGet, "/api/reservations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorKind(out))
}

func TestQuoteHandler(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")

	rec, out := s.do(t, http.MethodGet, "/api/quote?courtId=court-a&startTime=2026-03-10T18:00:00%2B05:30&endTime=2026-03-10T19:30:00%2B05:30", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "750", out["amount"])

	rec, out = s.do(t, http.MethodGet, "/api/quote?courtId=court-a&startTime=tomorrow", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(out))

	rec, _ = s.do(t, http.MethodGet, "/api/quote?courtId=nope&startTime=2026-03-10T18:00:00Z&endTime=2026-03-10T19:00:00Z", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReservationLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")
	body := map[string]string{"courtId": "court-a", "startTime": "2026-03-10T10:00:00+05:30", "endTime": "2026-03-10T11:00:00+05:30"}

	rec, out := s.do(t, http.MethodPost, "/api/reservations", tok, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "confirmed", out["status"])

	rec, out = s.do(t, http.MethodPost, "/api/reservations", token(t, "u2", ""), body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_conflict", errorKind(out))

	rec, _ = s.do(t, http.MethodPost, "/api/reservations", tok, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/reservations/"+id, token(t, "u2", ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = s.do(t, http.MethodGet, "/api/reservations", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), out["total"])

	rec, out = s.do(t, http.MethodPatch, "/api/reservations/"+id+"/cancel", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", out["status"])

	rec, out = s.do(t, http.MethodPatch, "/api/reservations/"+id+"/cancel", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(out))
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")

	rec, out := s.do(t, http.MethodPost, "/api/payments/intent", tok, map[string]any{
		"facilityId": "venue-1", "sportType": "badminton", "date": "2026-03-10", "startTime": "18:00",
		"durationHours": 1.5, "amountOverride": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(75000), out["amountMinor"])
	intentID, _ := out["correlationId"].(string)
	require.NotEmpty(t, intentID)

	rec, out = s.do(t, http.MethodPost, "/api/payments/finalize", tok, map[string]string{"paymentIntentId": intentID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "payment_not_succeeded", errorKind(out))

	s.cards.succeed(intentID)
	rec, out = s.do(t, http.MethodPost, "/api/payments/finalize", tok, map[string]string{"paymentIntentId": intentID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, false, out["alreadyProcessed"])

	rec, out = s.do(t, http.MethodPost, "/api/payments/finalize", tok, map[string]string{"paymentIntentId": intentID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["alreadyProcessed"])

	rec, _ = s.do(t, http.MethodPost, "/api/payments/finalize", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentFlow_PaidButUnbooked(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")
	rec, out := s.do(t, http.MethodPost, "/api/payments/intent", tok, map[string]any{
		"facilityId": "venue-1", "sportType": "badminton", "date": "2026-03-10", "startTime": "18:00", "durationHours": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	intentID := out["correlationId"].(string)
	s.cards.succeed(intentID)

	rec, _ = s.do(t, http.MethodPost, "/api/reservations", token(t, "u2", ""), map[string]string{
		"courtId": "court-a", "startTime": "2026-03-10T18:30:00+05:30", "endTime": "2026-03-10T19:30:00+05:30",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, out = s.do(t, http.MethodPost, "/api/payments/finalize", tok, map[string]string{"paymentIntentId": intentID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "paid_but_unbooked", errorKind(out))
	assert.NotEmpty(t, out["error"].(map[string]any)["incidentId"])

	admin := token(t, "ops", auth.RoleAdmin)
	rec, _ = s.do(t, http.MethodGet, "/admin/incidents", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/incidents?status=open", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var incidents []db.PaymentIncident
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, intentID, incidents[0].CorrelationID)

	rec, out = s.do(t, http.MethodPost, "/admin/incidents/"+incidents[0].ID+"/refund", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, db.IncidentRefunded, out["status"])
}

func TestVerifyOrder_BadSignature(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")

	rec, out := s.do(t, http.MethodPost, "/api/payments/order/verify", tok, map[string]string{
		"razorpay_order_id": "order_1", "razorpay_payment_id": "pay_1",
		"razorpay_signature": service.OrderSignature("wrong-secret", "order_1", "pay_1"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_signature", errorKind(out))

	rec, out = s.do(t, http.MethodPost, "/api/payments/order/verify", tok, map[string]string{"razorpay_order_id": "order_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(out))
}

func TestStripeWebhook(t *testing.T) {
	s := newTestServer(t)
	rec, out := s.do(t, http.MethodPost, "/api/payments/intent", token(t, "u1", ""), map[string]any{
		"venueId": "venue-1", "sportType": "badminton", "date": "2026-03-10", "startTime": "07:00", "durationHours": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	intentID := out["correlationId"].(string)
	s.cards.succeed(intentID)

	post := func(sig, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(body))
		req.Header.Set("Stripe-Signature", sig)
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusBadRequest, post("forged", intentID))
	assert.Equal(t, http.StatusOK, post("good", ""))
	assert.Equal(t, http.StatusOK, post("good", intentID))
	assert.Equal(t, http.StatusOK, post("good", intentID))
	assert.Equal(t, http.StatusInternalServerError, post("good", "pi_missing"))

	rs, err := s.ledger.ListReservationsByUser(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestAdminReservations(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, "ops", auth.RoleAdmin)

	rec, _ := s.do(t, http.MethodGet, "/admin/reservations?date=10-03-2026", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/reservations?date=2026-03-10", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}
