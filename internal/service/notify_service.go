package service

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type EmailSender interface {
	SendEmail(toEmailAddress, toName, subject, plainTextContent, htmlContent string) error
}

type SMSSender interface {
	SendSMS(toNumber, messageBody string) error
}

type SendGridMailer struct {
	APIKey    string
	FromEmail string
	FromName  string
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) *SendGridMailer {
	return &SendGridMailer{APIKey: apiKey, FromEmail: fromEmail, FromName: fromName}
}

func (m *SendGridMailer) SendEmail(toEmailAddress, toName, subject, plainTextContent, htmlContent string) error {
	if m.APIKey == "" || m.FromEmail == "" {
		return fmt.Errorf("SENDGRID_API_KEY or SENDGRID_FROM_EMAIL not set")
	}

	from := mail.NewEmail(m.FromName, m.FromEmail)
	to := mail.NewEmail(toName, toEmailAddress)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)

	client := sendgrid.NewSendClient(m.APIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		slog.Info("email sent", "to", toEmailAddress, "subject", subject, "status", response.StatusCode)
		return nil
	}
	return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
}

type TwilioSMS struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func NewTwilioSMS(accountSID, authToken, fromNumber string) *TwilioSMS {
	return &TwilioSMS{AccountSID: accountSID, AuthToken: authToken, FromNumber: fromNumber}
}

func (t *TwilioSMS) SendSMS(toNumber, messageBody string) error {
	if t.AccountSID == "" || t.AuthToken == "" || t.FromNumber == "" {
		return fmt.Errorf("twilio credentials not configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		slog.Warn("sms destination is not E.164", "to", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   t.AccountSID,
		Password:   t.AuthToken,
		AccountSid: t.AccountSID,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(t.FromNumber)
	params.SetBody(messageBody)

	resp, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send failed: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		slog.Info("sms sent", "to", toNumber, "sid", *resp.Sid)
	}
	return nil
}
