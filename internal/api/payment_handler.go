package api

import (
	"io"
	"log/slog"
	"net/http"

	apperr "courtbooking/internal/errors"
	"courtbooking/internal/service"
)

// WebhookVerifier authenticates a card provider webhook delivery and returns
// the id of a succeeded intent, or "" for events that need no action.
type WebhookVerifier interface {
	ParseSucceededIntent(payload []byte, sigHeader string) (string, error)
}

type PaymentHandler struct {
	Payments *service.PaymentService
	Webhooks WebhookVerifier
}

func NewPaymentHandler(payments *service.PaymentService, webhooks WebhookVerifier) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Webhooks: webhooks}
}

func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var body BookingRequest
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	req, err := body.toEntity()
	if err != nil {
		WriteError(w, err)
		return
	}
	intent, err := h.Payments.CreateIntent(r.Context(), user.Identity(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

func (h *PaymentHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var body FinalizeRequest
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	intentID, err := body.intentID()
	if err != nil {
		WriteError(w, err)
		return
	}
	result, err := h.Payments.Finalize(r.Context(), user.Identity(), user.Email, intentID)
	if err != nil {
		WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyProcessed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var body BookingRequest
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	req, err := body.toEntity()
	if err != nil {
		WriteError(w, err)
		return
	}
	order, err := h.Payments.CreateOrder(r.Context(), user.Identity(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *PaymentHandler) VerifyOrder(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var body VerifyOrderRequest
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	req, err := body.toEntity()
	if err != nil {
		WriteError(w, err)
		return
	}
	result, err := h.Payments.VerifyOrder(r.Context(), user.Identity(), user.Email, req)
	if err != nil {
		WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyProcessed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// HandleWebhook books the slot for a payment_intent.succeeded delivery. A
// 5xx makes the provider retry; outcomes that are already recorded ack.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("webhook: reading body", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if h.Webhooks == nil {
		WriteError(w, apperr.NotFound("card payments are not configured"))
		return
	}

	intentID, err := h.Webhooks.ParseSucceededIntent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		slog.Warn("webhook rejected", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if intentID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.Payments.FinalizeFromWebhook(r.Context(), intentID); err != nil {
		he := apperr.As(err)
		if he.Code >= http.StatusInternalServerError {
			slog.Error("webhook finalize failed", "correlation_id", intentID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// Not retryable, e.g. an intent without booking metadata.
		slog.Warn("webhook finalize rejected", "correlation_id", intentID, "kind", he.Kind, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
