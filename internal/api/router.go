package api

import (
	"net/http"

	"courtbooking/internal/auth"

	"github.com/gorilla/mux"
)

type Routes struct {
	Auth         *auth.Authenticator
	Reservations *UserReservationHandler
	Payments     *PaymentHandler
	// AdminAuth is nil when there is no admin store (in-memory ledger).
	AdminAuth *AdminAuthHandler
	Admin     *AdminHandler
}

func NewRouter(rt Routes) *mux.Router {
	rt.Auth.ErrorWriter = WriteError

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// Provider callbacks authenticate by signature, not by user token.
	r.HandleFunc("/webhooks/stripe", rt.Payments.HandleWebhook).Methods(http.MethodPost)

	user := r.PathPrefix("/api").Subrouter()
	user.Use(rt.Auth.RequireUser)
	user.HandleFunc("/quote", rt.Reservations.Quote).Methods(http.MethodGet)
	user.HandleFunc("/reservations", rt.Reservations.CreateReservation).Methods(http.MethodPost)
	user.HandleFunc("/reservations", rt.Reservations.ListReservations).Methods(http.MethodGet)
	user.HandleFunc("/reservations/{id}", rt.Reservations.GetReservation).Methods(http.MethodGet)
	user.HandleFunc("/reservations/{id}/cancel", rt.Reservations.CancelReservation).Methods(http.MethodPatch)
	user.HandleFunc("/payments/intent", rt.Payments.CreateIntent).Methods(http.MethodPost)
	user.HandleFunc("/payments/finalize", rt.Payments.Finalize).Methods(http.MethodPost)
	user.HandleFunc("/payments/order", rt.Payments.CreateOrder).Methods(http.MethodPost)
	user.HandleFunc("/payments/order/verify", rt.Payments.VerifyOrder).Methods(http.MethodPost)

	if rt.AdminAuth != nil {
		r.HandleFunc("/admin/login", rt.AdminAuth.Login).Methods(http.MethodPost)
	}
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(rt.Auth.RequireAdmin)
	admin.HandleFunc("/reservations", rt.Admin.ListReservations).Methods(http.MethodGet)
	admin.HandleFunc("/incidents", rt.Admin.ListIncidents).Methods(http.MethodGet)
	admin.HandleFunc("/incidents/{id}/refund", rt.Admin.RefundIncident).Methods(http.MethodPost)

	return r
}
