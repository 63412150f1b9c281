package middleware

import "github.com/gofiber/fiber/v2"

// CORS settings shared by Preflight and the cors middleware in the server package.
const (
	AllowOrigins = "*"
	AllowMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	AllowHeaders = "Origin,Content-Type,Accept,Authorization"
)

// Preflight answers every OPTIONS request with 200 and an empty body, whatever the
// path. fiber's cors middleware would reply 204, and only to well-formed preflights.
func Preflight() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodOptions {
			return c.Next()
		}
		c.Set(fiber.HeaderAccessControlAllowOrigin, AllowOrigins)
		c.Set(fiber.HeaderAccessControlAllowMethods, AllowMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, AllowHeaders)
		c.Status(fiber.StatusOK)
		return nil
	}
}
