package middleware

// roles.go: global role checks. The platform has two global roles, admin and user.
// Club-level roles (admin/moderator/member) are checked by the club handlers because
// they depend on which club is being acted on.

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

// RequireRole returns a middleware handler that allows only users whose global role
// matches one of the provided roles. Returns HTTP 403 Forbidden otherwise.
//
//	app.Post("/api/trails", authn, middleware.RequireRole(models.UserRoleAdmin), handlers.CreateTrail(d))
//
// RequireRole must run AFTER Auth, which is what populates "userRole" in c.Locals.
func RequireRole(roles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userRole, ok := c.Locals(LocalUserRole).(string)
		if !ok || userRole == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}

		for _, role := range roles {
			if models.UserRole(userRole) == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient permissions",
		})
	}
}
