package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.Claims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestRequireUser(t *testing.T) {
	a := NewAuthenticator(secret)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	var seen *Claims
	h := a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + sign(t, Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, "other"), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}, secret), http.StatusUnauthorized, ""},
		{"no identity", "Bearer " + sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, secret), http.StatusUnauthorized, ""},
		{"id claim", "Bearer " + sign(t, Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, secret), http.StatusNoContent, "u1"},
		{"sub claim", "Bearer " + sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u2", ExpiresAt: exp}}, secret), http.StatusNoContent, "u2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantUser != "" {
				require.NotNil(t, seen)
				assert.Equal(t, tt.wantUser, seen.Identity())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	a := NewAuthenticator(secret)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	h := a.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for role, want := range map[string]int{"": http.StatusForbidden, "user": http.StatusForbidden, "Admin": http.StatusOK, "admin": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, Claims{UserID: "a1", Role: role, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, secret))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
