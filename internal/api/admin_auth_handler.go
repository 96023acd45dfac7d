package api

import (
	"errors"
	"net/http"

	apperr "courtbooking/internal/errors"
	"courtbooking/internal/service"
)

type AdminAuthHandler struct {
	service service.AdminAuthService
}

func NewAdminAuthHandler(svc service.AdminAuthService) *AdminAuthHandler {
	return &AdminAuthHandler{service: svc}
}

func (h *AdminAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, apperr.Validation("email and password are required"))
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			WriteError(w, apperr.NewHTTPError(http.StatusUnauthorized, apperr.KindUnauthorized, "invalid credentials"))
			return
		}
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}
