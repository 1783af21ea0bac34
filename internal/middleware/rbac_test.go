package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func adminApp() *fiber.App {
	app := fiber.New()
	app.Get("/admin", JWTProtected(testSecret), RequireRole(RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalSubject).(string))
	})
	return app
}

func TestAdminTokenGrantsAccess(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "reviewer@example.com", "role": "Admin", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := adminApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminAccessRejections(t *testing.T) {
	cases := map[string]struct {
		header string
		status int
	}{
		"missing header": {"", fiber.StatusUnauthorized},
		"not bearer":     {"Basic abc", fiber.StatusUnauthorized},
		"wrong secret":   {"Bearer " + signToken(t, jwt.MapClaims{"sub": "x", "role": "admin"}, "other"), fiber.StatusUnauthorized},
		"expired":        {"Bearer " + signToken(t, jwt.MapClaims{"sub": "x", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), fiber.StatusUnauthorized},
		"wrong role":     {"Bearer " + signToken(t, jwt.MapClaims{"sub": "x", "roles": []string{"reviewer"}}, testSecret), fiber.StatusForbidden},
		"no role":        {"Bearer " + signToken(t, jwt.MapClaims{"sub": "x"}, testSecret), fiber.StatusForbidden},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := adminApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRoleListClaim(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "x", "roles": []string{"viewer", "admin"}}, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := adminApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCorrelationIDPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}

func TestRateLimitRejectsBurst(t *testing.T) {
	app := fiber.New()
	app.Post("/rubric", RateLimit("rubric", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/rubric", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	require.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}
