package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgmiddleware "github.com/kidsdesign/storefront/pkg/middleware"
)

const testSecret = "test-secret-key-for-jwt-signing"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func generateToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func future() int64 { return time.Now().Add(time.Hour).Unix() }

func TestJWTValidator(t *testing.T) {
	validate := JWTValidator(testSecret)

	tests := []struct {
		name      string
		token     string
		wantUser  string
		wantEmail string
		wantErr   bool
	}{
		{
			name:      "numeric user id",
			token:     generateToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42, "email": "a@b.c", "token_type": "access", "exp": future()}),
			wantUser:  "42",
			wantEmail: "a@b.c",
		},
		{
			name:     "string user id",
			token:    generateToken(t, testSecret, jwt.SigningMethodHS512, jwt.MapClaims{"user_id": "user-123", "exp": future()}),
			wantUser: "user-123",
		},
		{
			name:     "sub fallback",
			token:    generateToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-9", "exp": future()}),
			wantUser: "user-9",
		},
		{
			name:    "refresh token",
			token:   generateToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42, "token_type": "refresh", "exp": future()}),
			wantErr: true,
		},
		{
			name:    "expired",
			token:   generateToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42, "exp": time.Now().Add(-time.Minute).Unix()}),
			wantErr: true,
		},
		{
			name:    "no expiry",
			token:   generateToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42}),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   generateToken(t, "other-secret", jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42, "exp": future()}),
			wantErr: true,
		},
		{
			name:    "no user",
			token:   generateToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"exp": future()}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := validate(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, claims.UserID)
			assert.Equal(t, tt.wantEmail, claims.Email)
		})
	}
}

func TestJWTValidator_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1, "exp": future()})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = JWTValidator(testSecret)(s)
	assert.Error(t, err)
}

func TestJWTValidator_WithOptionalAuth(t *testing.T) {
	var gotUser, gotToken string
	h := pkgmiddleware.OptionalAuth(JWTValidator(testSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = pkgmiddleware.UserIDFromContext(r.Context())
		gotToken = pkgmiddleware.BearerTokenFromContext(r.Context())
	}))

	token := generateToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7, "exp": future()})
	req := httptest.NewRequest(http.MethodGet, "/category/5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "7", gotUser)
	assert.Equal(t, token, gotToken)

	req = httptest.NewRequest(http.MethodGet, "/category/5", nil)
	req.Header.Set("Authorization", "Bearer tampered")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
