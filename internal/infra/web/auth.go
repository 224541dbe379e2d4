package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"course-entitlement-platform/internal/infra/logging"
)

type ctxKey int

const claimsKey ctxKey = iota

// SessionClaims identifies the calling user. Staff is minted into the token
// at login so the admin routes do not need a user lookup per request.
type SessionClaims struct {
	Staff bool `json:"staff"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

// Mint issues a signed session token for the given user.
func (a *AuthManager) Mint(userID string, staff bool) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Staff: staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseFromRequest reads the bearer token from the Authorization header.
func (a *AuthManager) ParseFromRequest(r *http.Request) (*SessionClaims, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return nil, errors.New("missing token")
	}
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireUser rejects unauthenticated requests and stores the claims in the
// request context.
func (a *AuthManager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(logging.WithUserID(ctx, claims.Subject)))
	})
}

// RequireStaff additionally rejects non-staff sessions.
func (a *AuthManager) RequireStaff(next http.Handler) http.Handler {
	return a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := ClaimsFrom(r.Context()); claims == nil || !claims.Staff {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// ClaimsFrom returns the session claims stored by RequireUser, or nil.
func ClaimsFrom(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(claimsKey).(*SessionClaims)
	return claims
}
