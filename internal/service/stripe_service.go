package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ProviderIntent is the provider-neutral view of a card payment intent.
type ProviderIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
}

const intentSucceeded = "succeeded"

// CardProvider creates and reads card payment intents. Intents carry the
// booking parameters in their metadata.
type CardProvider interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*ProviderIntent, error)
	GetIntent(ctx context.Context, id string) (*ProviderIntent, error)
	Refund(ctx context.Context, intentID string) error
}

type StripeService struct {
	WebhookSecret string
}

// NewStripeService configures the global stripe client. Every call made
// through it is bounded by timeout.
func NewStripeService(secretKey, webhookSecret string, timeout time.Duration) *StripeService {
	stripe.Key = secretKey
	stripe.SetHTTPClient(&http.Client{Timeout: timeout})
	return &StripeService{WebhookSecret: webhookSecret}
}

func (s *StripeService) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*ProviderIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}
	return toProviderIntent(pi), nil
}

func (s *StripeService) GetIntent(ctx context.Context, id string) (*ProviderIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get intent %s: %w", id, err)
	}
	return toProviderIntent(pi), nil
}

func (s *StripeService) Refund(ctx context.Context, intentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	_, err := refund.New(params)
	if err != nil {
		return fmt.Errorf("stripe refund %s: %w", intentID, err)
	}
	return nil
}

// ParseSucceededIntent verifies a webhook delivery and returns the intent id
// of a payment_intent.succeeded event. Other event types return "".
func (s *StripeService) ParseSucceededIntent(payload []byte, sigHeader string) (string, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.WebhookSecret)
	if err != nil {
		return "", fmt.Errorf("webhook signature verification failed: %w", err)
	}
	if event.Type != "payment_intent.succeeded" {
		return "", nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", fmt.Errorf("error parsing payment_intent: %w", err)
	}
	return pi.ID, nil
}

func toProviderIntent(pi *stripe.PaymentIntent) *ProviderIntent {
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	return &ProviderIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}
