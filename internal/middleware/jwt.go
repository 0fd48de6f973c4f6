package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTAuth validates HS256 bearer tokens and stores the subject as the caller's user id.
func JWTAuth(secret []byte) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		var claims jwt.RegisteredClaims
		_, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return fiber.NewError(http.StatusUnauthorized, "token expired")
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if claims.Subject == "" {
			return fiber.NewError(http.StatusUnauthorized, "token has no subject")
		}

		c.Locals(LocalUserID, claims.Subject)
		return c.Next()
	}
}

// IssueToken signs an HS256 token for subject. Used by ledgerctl and tests.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}
