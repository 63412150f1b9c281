package handlers

import "github.com/gofiber/fiber/v2"

// HealthCheck handles GET /health, the liveness probe used by load balancers and
// container orchestrators. It touches neither the database nor auth, so it only
// says the process is up and serving.
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
