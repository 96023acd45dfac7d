package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"courtbooking/internal/auth"
	apperr "courtbooking/internal/errors"
)

type errorDetail struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	IncidentID string `json:"incidentId,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

// WriteError renders err as {"error": {...}}. Errors without a kind are
// logged and reported as 500 without their text.
func WriteError(w http.ResponseWriter, err error) {
	he := apperr.As(err)
	if he.Code >= http.StatusInternalServerError {
		slog.Error("request failed", "kind", he.Kind, "error", err)
	}
	writeJSON(w, he.Code, errorBody{Error: errorDetail{Kind: he.Kind, Message: he.Message, IncidentID: he.IncidentID}})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

// caller returns the authenticated user. Routes are mounted behind
// RequireUser, so a missing value is a wiring bug.
func caller(r *http.Request) (*auth.Claims, error) {
	c, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	return c, nil
}
