// Package identity resolves who is making a request: a stable account
// id from a bearer token, or the anonymous sentinel (empty string) when
// there is none. Every visitor also carries a device id, which keys the
// anonymous cart.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Anonymous is the sentinel account id for unauthenticated visitors.
const Anonymous = ""

const deviceCookie = "device_id"

type ctxKey int

const (
	ctxAccountID ctxKey = iota
	ctxDeviceID
)

// AccountID returns the authenticated account id, or Anonymous.
func AccountID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxAccountID).(string); ok {
		return v
	}
	return Anonymous
}

func DeviceID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxDeviceID).(string); ok {
		return v
	}
	return ""
}

// FromToken extracts the subject from an HS256 bearer token.
func FromToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Anonymous, fmt.Errorf("parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return Anonymous, fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// Middleware attaches the account id and a device id, minting a device
// cookie on first contact. Missing or invalid tokens resolve to the
// anonymous account; browsing never requires login.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			accountID := Anonymous
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				if sub, err := FromToken(strings.TrimPrefix(auth, "Bearer "), secret); err == nil {
					accountID = sub
				}
			}
			ctx = context.WithValue(ctx, ctxAccountID, accountID)

			deviceID := ""
			if c, err := r.Cookie(deviceCookie); err == nil && c.Value != "" {
				deviceID = c.Value
			}
			if deviceID == "" {
				deviceID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     deviceCookie,
					Value:    deviceID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx = context.WithValue(ctx, ctxDeviceID, deviceID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity primes a context outside the HTTP stack; tests and tools
// use it.
func WithIdentity(ctx context.Context, accountID, deviceID string) context.Context {
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	return context.WithValue(ctx, ctxDeviceID, deviceID)
}
