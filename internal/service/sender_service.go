package service

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"courtbooking/internal/db"
	"courtbooking/internal/entities"
)

var reservationEmailTmpl = template.Must(template.New("reservation_email").Parse(`<!DOCTYPE html>
<html><body style="font-family: sans-serif">
<h2>Your booking is {{.Status}}</h2>
<p>Booking <strong>{{.ReservationID}}</strong> on {{.CourtName}}</p>
<p>{{.StartTimeFormatted}} to {{.EndTimeFormatted}}</p>
{{if .TotalPrice}}<p>Total: {{.TotalPrice}}</p>{{end}}
<p style="color:#888">&copy; {{.CurrentYear}} Courtside</p>
</body></html>`))

// SenderService sends user and support notifications in the background.
// Failures are logged and never reach the caller.
type SenderService struct {
	Email        EmailSender
	SMS          SMSSender
	SupportEmail string
	SupportPhone string
	Location     *time.Location

	wg sync.WaitGroup
}

func NewSenderService(email EmailSender, sms SMSSender, supportEmail, supportPhone string, loc *time.Location) *SenderService {
	return &SenderService{Email: email, SMS: sms, SupportEmail: supportEmail, SupportPhone: supportPhone, Location: loc}
}

func (s *SenderService) BookingConfirmed(res db.Reservation, court db.Court, toEmail string) {
	s.sendReservationEmail(res, court.Name, "confirmed", toEmail)
}

func (s *SenderService) BookingCancelled(res db.Reservation, toEmail string) {
	s.sendReservationEmail(res, res.CourtID, "cancelled", toEmail)
}

func (s *SenderService) sendReservationEmail(res db.Reservation, courtName, status, toEmail string) {
	if s.Email == nil {
		return
	}
	data := struct {
		entities.ReservationEmailData
		Status string
	}{
		ReservationEmailData: entities.ReservationEmailData{
			ReservationID:      res.ID,
			CourtName:          courtName,
			StartTimeFormatted: res.StartTime.In(s.Location).Format("02 Jan 2006 15:04 MST"),
			EndTimeFormatted:   res.EndTime.In(s.Location).Format("02 Jan 2006 15:04 MST"),
			CurrentYear:        time.Now().In(s.Location).Year(),
		},
		Status: status,
	}
	if status == "confirmed" {
		data.TotalPrice = res.TotalPrice.StringFixed(2)
	}

	subject := fmt.Sprintf("Your booking is %s - %s", status, data.StartTimeFormatted)
	plain := fmt.Sprintf("Your booking %s on %s is %s.\nFrom: %s\nTo: %s\n",
		res.ID, courtName, status, data.StartTimeFormatted, data.EndTimeFormatted)

	var html bytes.Buffer
	if err := reservationEmailTmpl.Execute(&html, data); err != nil {
		slog.Error("render reservation email", "reservation_id", res.ID, "error", err)
	}

	s.async(func() {
		if err := s.Email.SendEmail(toEmail, "", subject, plain, html.String()); err != nil {
			slog.Warn("reservation email failed", "reservation_id", res.ID, "error", err)
		}
	})
}

// PaidButUnbooked alerts support by email and SMS so the payment can be
// refunded by hand.
func (s *SenderService) PaidButUnbooked(inc db.PaymentIncident) {
	if s.Email == nil && s.SMS == nil {
		slog.Warn("no support channel configured for incident", "incident_id", inc.ID)
		return
	}
	data := entities.IncidentAlertData{
		IncidentID:    inc.ID,
		Provider:      inc.Provider,
		CorrelationID: inc.CorrelationID,
		UserID:        inc.UserID,
		CourtID:       inc.CourtID,
		StartTime:     inc.StartTime.In(s.Location).Format(time.RFC3339),
		EndTime:       inc.EndTime.In(s.Location).Format(time.RFC3339),
		Amount:        FromMinorUnits(inc.AmountMinor).StringFixed(2) + " " + inc.Currency,
		Reason:        inc.Reason,
	}
	subject := fmt.Sprintf("[refund needed] paid but unbooked %s %s", data.Provider, data.CorrelationID)
	body := fmt.Sprintf("Incident: %s\nProvider: %s\nCorrelation: %s\nUser: %s\nCourt: %s\nSlot: %s - %s\nAmount: %s\nReason: %s\n",
		data.IncidentID, data.Provider, data.CorrelationID, data.UserID, data.CourtID,
		data.StartTime, data.EndTime, data.Amount, data.Reason)

	if s.SupportEmail != "" && s.Email != nil {
		s.async(func() {
			if err := s.Email.SendEmail(s.SupportEmail, "Support", subject, body, ""); err != nil {
				slog.Error("support email failed", "incident_id", inc.ID, "error", err)
			}
		})
	}
	if s.SupportPhone != "" && s.SMS != nil {
		sms := fmt.Sprintf("Refund needed: %s %s (%s). Incident %s", data.Provider, data.CorrelationID, data.Amount, data.IncidentID)
		s.async(func() {
			if err := s.SMS.SendSMS(s.SupportPhone, sms); err != nil {
				slog.Error("support sms failed", "incident_id", inc.ID, "error", err)
			}
		})
	}
}

func (s *SenderService) async(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Wait blocks until queued notifications have been handed to the providers.
func (s *SenderService) Wait() {
	s.wg.Wait()
}
