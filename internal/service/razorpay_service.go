package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// OrderProvider creates orders whose payments are proven by an HMAC signature
// returned to the client.
type OrderProvider interface {
	KeyID() string
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
	Refund(ctx context.Context, paymentID string, amountMinor int64) error
}

type RazorpayService struct {
	client *razorpay.Client
	keyID  string
	secret string
}

func NewRazorpayService(keyID, keySecret string, timeout time.Duration) *RazorpayService {
	client := razorpay.NewClient(keyID, keySecret)
	client.SetTimeout(int16(timeout / time.Second))
	return &RazorpayService{client: client, keyID: keyID, secret: keySecret}
}

func (s *RazorpayService) KeyID() string {
	return s.keyID
}

func (s *RazorpayService) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}
	body, err := s.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay create order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return "", fmt.Errorf("razorpay create order: response has no id")
	}
	return id, nil
}

func (s *RazorpayService) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyOrderSignature(s.secret, orderID, paymentID, signature)
}

func (s *RazorpayService) Refund(ctx context.Context, paymentID string, amountMinor int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.Payment.Refund(paymentID, int(amountMinor), nil, nil)
	if err != nil {
		return fmt.Errorf("razorpay refund %s: %w", paymentID, err)
	}
	return nil
}

// OrderSignature is hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func OrderSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyOrderSignature compares in constant time.
func VerifyOrderSignature(secret, orderID, paymentID, signature string) bool {
	expected := OrderSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
