package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/rubric-review-api/internal/utils"
)

// Locals populated from verified tokens.
const (
	LocalSubject = "auth_subject"
	LocalRoles   = "auth_roles"
)

// JWTProtected validates HMAC-signed bearer tokens and stores the subject and
// role claims in the request locals.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get(fiber.HeaderAuthorization)
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		if subject, err := claims.GetSubject(); err == nil && subject != "" {
			c.Locals(LocalSubject, subject)
		}
		c.Locals(LocalRoles, extractRoles(claims))

		return c.Next()
	}
}

func extractRoles(claims jwt.MapClaims) []string {
	var roles []string
	add := func(raw string) {
		if role := strings.ToLower(strings.TrimSpace(raw)); role != "" {
			roles = append(roles, role)
		}
	}
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			add(v)
		case []interface{}:
			for _, item := range v {
				if str, ok := item.(string); ok {
					add(str)
				}
			}
		}
	}
	return roles
}
