package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperr "courtbooking/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

// Claims accepts tokens that carry the user id either as "id" or as the
// standard "sub".
type Claims struct {
	UserID string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

func (c *Claims) IsAdmin() bool {
	return strings.EqualFold(c.Role, RoleAdmin)
}

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

type Authenticator struct {
	secret []byte
	// ErrorWriter renders auth failures; set by the api package.
	ErrorWriter func(w http.ResponseWriter, err error)
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), ErrorWriter: func(w http.ResponseWriter, err error) {
		http.Error(w, err.Error(), apperr.As(err).Code)
	}}
}

func (a *Authenticator) ParseValidate(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Identity() == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// RequireUser rejects requests without a valid bearer token and stores the
// claims in the request context.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			a.ErrorWriter(w, apperr.ErrUnauthorized)
			return
		}
		claims, err := a.ParseValidate(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			a.ErrorWriter(w, apperr.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireAdmin is RequireUser restricted to admin tokens.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := FromContext(r.Context())
		if claims == nil || !claims.IsAdmin() {
			a.ErrorWriter(w, apperr.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
