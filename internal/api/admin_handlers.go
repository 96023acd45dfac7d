package api

import (
	"net/http"
	"time"

	"courtbooking/internal/db"
	apperr "courtbooking/internal/errors"
	"courtbooking/internal/repository"
	"courtbooking/internal/service"

	"github.com/gorilla/mux"
)

type AdminHandler struct {
	Service *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{Service: svc}
}

func (h *AdminHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.ReservationFilter{
		Date:    q.Get("date"),
		CourtID: q.Get("courtId"),
		Status:  q.Get("status"),
	}
	if f.Date != "" {
		if _, err := time.Parse("2006-01-02", f.Date); err != nil {
			WriteError(w, apperr.Validation("date must be YYYY-MM-DD"))
			return
		}
	}
	reservations, err := h.Service.ListReservations(r.Context(), f)
	if err != nil {
		WriteError(w, err)
		return
	}
	if reservations == nil {
		reservations = []db.Reservation{}
	}
	writeJSON(w, http.StatusOK, reservations)
}

func (h *AdminHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", db.IncidentOpen, db.IncidentRefunded:
	default:
		WriteError(w, apperr.Validation("unknown status %q", status))
		return
	}
	incidents, err := h.Service.ListIncidents(r.Context(), status)
	if err != nil {
		WriteError(w, err)
		return
	}
	if incidents == nil {
		incidents = []db.PaymentIncident{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (h *AdminHandler) RefundIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.Service.RefundIncident(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}
