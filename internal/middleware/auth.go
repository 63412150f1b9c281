// Package middleware contains HTTP middleware functions for the fitness club API.
// Middleware sits between the HTTP server and route handlers; it runs on every
// request that passes through it, which makes it the right place for cross-cutting
// concerns like authentication, CORS and role checks.
package middleware

import (
	"strings"

	fws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DartinBot/Khyrie-sub002/internal/auth"
)

// Keys under which Auth stores the caller's identity in c.Locals.
const (
	LocalUserID   = "userID"   // string UUID
	LocalUserRole = "userRole" // "admin" or "user"
	LocalUsername = "username"
	LocalTokenID  = "tokenID"  // jti, used by logout
	LocalTokenExp = "tokenExp" // time.Time, used by logout
)

// Auth returns a Fiber middleware handler that:
//  1. Reads the token from "Authorization: Bearer <token>" (or ?token= on a WebSocket upgrade,
//     since browsers cannot set headers on the handshake)
//  2. Verifies signature, issuer and expiry
//  3. Rejects tokens that were revoked by logout (skipped when revoker is nil)
//  4. Stores the caller's id, role and token metadata in c.Locals for the handlers
func Auth(tokens *auth.Issuer, revoker auth.Revoker, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		if revoker != nil {
			revoked, err := revoker.IsRevoked(c.UserContext(), claims.ID)
			if err != nil {
				// Fail closed: a token we cannot check is treated as unusable.
				log.Error("token revocation check failed", zap.Error(err))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "authentication temporarily unavailable",
				})
			}
			if revoked {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "token has been revoked",
				})
			}
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalUserRole, claims.Role)
		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalTokenID, claims.ID)
		c.Locals(LocalTokenExp, claims.ExpiresAt.Time)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	if header == "" && fws.IsWebSocketUpgrade(c) {
		token := c.Query("token")
		return token, token != ""
	}
	return "", false
}
