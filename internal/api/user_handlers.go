package api

import (
	"net/http"
	"time"

	"courtbooking/internal/db"
	"courtbooking/internal/entities"
	apperr "courtbooking/internal/errors"
	"courtbooking/internal/service"

	"github.com/gorilla/mux"
)

type UserReservationHandler struct {
	Reservations *service.ReservationService
	Quotes       *service.QuoteService
}

func NewUserReservationHandler(reservations *service.ReservationService, quotes *service.QuoteService) *UserReservationHandler {
	return &UserReservationHandler{Reservations: reservations, Quotes: quotes}
}

func (h *UserReservationHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	courtID := q.Get("courtId")
	start, errStart := time.Parse(time.RFC3339, q.Get("startTime"))
	end, errEnd := time.Parse(time.RFC3339, q.Get("endTime"))
	if courtID == "" || errStart != nil || errEnd != nil {
		WriteError(w, apperr.Validation("courtId, startTime and endTime (RFC3339) are required"))
		return
	}
	quote, err := h.Quotes.Quote(r.Context(), courtID, start, end)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *UserReservationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req CreateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, err)
		return
	}
	res, err := h.Reservations.Reserve(r.Context(), entities.ReservationRequest{
		CourtID:   req.CourtID,
		UserID:    user.Identity(),
		UserEmail: user.Email,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *UserReservationHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", db.StatusConfirmed, db.StatusCancelled, db.StatusCompleted:
	default:
		WriteError(w, apperr.Validation("unknown status %q", status))
		return
	}
	list, err := h.Reservations.ListMine(r.Context(), user.Identity(), status)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *UserReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	res, err := h.Reservations.Get(r.Context(), mux.Vars(r)["id"], user.Identity())
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *UserReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	res, err := h.Reservations.Cancel(r.Context(), mux.Vars(r)["id"], user.Identity(), user.Email)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
