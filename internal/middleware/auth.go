// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user id.
	UserIDKey ContextKey = "user_id"
	// DeviceIDKey is the context key for the client device id.
	DeviceIDKey ContextKey = "device_id"
)

// DeviceIDHeader carries the client-generated device identifier that scopes
// anonymous sessions, mirroring how a browser would scope local storage.
const DeviceIDHeader = "X-Device-ID"

const maxDeviceIDLength = 64

// Claims represents JWT claims issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
}

// Identity resolves the caller's identity from an optional bearer token. A
// missing or invalid token yields the anonymous identity rather than a 401:
// unauthenticated visitors still get the local-only demo experience, and
// Session Mode is derived downstream from the empty user id.
func Identity(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := resolveUserID(r, jwtSecret); userID != "" {
				ctx = context.WithValue(ctx, UserIDKey, userID)
			}
			if deviceID := resolveDeviceID(r); deviceID != "" {
				ctx = context.WithValue(ctx, DeviceIDKey, deviceID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveUserID(r *http.Request, jwtSecret string) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	return claims.Subject
}

// resolveDeviceID reads the client device id, dropping anything that is not
// a plain opaque token.
func resolveDeviceID(r *http.Request) string {
	id := r.Header.Get(DeviceIDHeader)
	if len(id) > maxDeviceIDLength {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return ""
		}
	}
	return id
}

// GetDeviceID gets the client device id from context; empty when the client
// sent none.
func GetDeviceID(ctx context.Context) string {
	if v := ctx.Value(DeviceIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetUserID gets the authenticated user id from context; empty means
// anonymous.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// RequireIdentity rejects anonymous callers. Used on routes that only make
// sense in Persisted Mode, such as the conversation list mutations.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
