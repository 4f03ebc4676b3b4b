package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

// Locals keys set for authenticated requests.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// Claims are the session claims issued by the external auth service. The
// subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth verifies HS256 bearer tokens and exposes the subject and role to
// handlers through c.Locals.
func JWTAuth(secret []byte) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fmt.Errorf("missing bearer token: %w", apperr.ErrUnauthorized)
		}
		raw := strings.TrimSpace(authz[len("Bearer "):])

		claims := &Claims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return fmt.Errorf("session expired: %w", apperr.ErrUnauthorized)
			}
			return fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
		}
		if claims.Subject == "" {
			return fmt.Errorf("token has no subject: %w", apperr.ErrUnauthorized)
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}
