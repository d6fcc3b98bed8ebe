package middleware

import (
	"strconv"

	"courtyard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Actor identity arrives on trusted headers set by the edge layer, which has
// already authenticated the caller. The messaging subsystem never validates
// credentials itself.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
)

// ActorRequired enforces that every request carries a verified actor identity
// and materializes it into Fiber locals.
func ActorRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(HeaderActorID)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing actor identity",
			})
		}

		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid actor identity",
			})
		}

		role := models.Role(c.Get(HeaderActorRole))
		switch role {
		case models.RoleAdmin, models.RoleSecurity, models.RoleResident:
		case "":
			role = models.RoleResident
		default:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unknown actor role",
			})
		}

		c.Locals("actorID", uint(id))
		c.Locals("actorName", c.Get(HeaderActorName))
		c.Locals("actorRole", role)
		return c.Next()
	}
}
