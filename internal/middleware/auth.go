// Package middleware holds the storefront-specific HTTP middleware: shopper
// token verification and per-client rate limiting.
package middleware

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	pkgmiddleware "github.com/kidsdesign/storefront/pkg/middleware"
)

var (
	errMissingSubject = errors.New("token carries no user id")
	errWrongTokenType = errors.New("not an access token")
)

// JWTValidator returns a token validator for HMAC-signed shopper tokens
// issued by the remote API. The user id is read from "user_id" (string or
// number) and falls back to "sub". Refresh tokens are rejected.
func JWTValidator(secret string) pkgmiddleware.TokenValidator {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(tokenString string) (*pkgmiddleware.Claims, error) {
		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if !token.Valid {
			return nil, jwt.ErrTokenSignatureInvalid
		}

		if typ, ok := claims["token_type"].(string); ok && typ != "access" {
			return nil, errWrongTokenType
		}

		userID := claimString(claims["user_id"])
		if userID == "" {
			userID = claimString(claims["sub"])
		}
		if userID == "" {
			return nil, errMissingSubject
		}

		return &pkgmiddleware.Claims{
			UserID: userID,
			Email:  claimString(claims["email"]),
		}, nil
	}
}

func claimString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}
