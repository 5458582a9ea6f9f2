package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func captureUserID(userID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*userID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityResolvesValidToken(t *testing.T) {
	var got string
	h := Identity(testSecret)(captureUserID(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", got)
}

func TestIdentityFallsBackToAnonymous(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "user-42")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Identity(testSecret)(captureUserID(&got))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			// Invalid credentials degrade to the anonymous identity, they
			// never produce a 401 on open routes.
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, got)
		})
	}
}

func TestIdentityExpiredTokenIsAnonymous(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	var got string
	h := Identity(testSecret)(captureUserID(&got))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, got)
}

func TestIdentityResolvesDeviceID(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"plain token", "dev-1234_abc", "dev-1234_abc"},
		{"missing", "", ""},
		{"path characters rejected", "../../etc", ""},
		{"overlong rejected", strings.Repeat("a", 65), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := Identity(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetDeviceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(DeviceIDHeader, tc.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequireIdentityRejectsAnonymous(t *testing.T) {
	h := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateConversationID(t *testing.T) {
	assert.NoError(t, ValidateConversationID("new"))
	assert.NoError(t, ValidateConversationID("demo-tamara"))
	assert.NoError(t, ValidateConversationID("b7be0635-106c-4ce8-a0b2-6a1c7b2f0001"))
	assert.Error(t, ValidateConversationID("drop table"))
	assert.Error(t, ValidateConversationID(""))
}
