package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/rubric-review-api/internal/utils"
)

// RoleAdmin is the role required for the review endpoints.
const RoleAdmin = "admin"

// RequireRole ensures that the authenticated caller holds one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalRoles).([]string)
		for _, role := range roles {
			if _, ok := allowed[role]; ok {
				return c.Next()
			}
		}
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}
}
