package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubric-review-api/internal/config"
	"github.com/noah-isme/rubric-review-api/internal/handler"
)

func TestHealthAndDebug(t *testing.T) {
	cfg := config.Config{AppName: "Rubric Review API", AppEnv: "test"}
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/debug", handler.DebugHandler(cfg, mockReviewService{}, handler.DebugInfo{Provider: "anthropic", Trigger: "goroutine"}, testLogger()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var health handler.HealthResponse
	decodeEnvelope(t, resp, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "Rubric Review API", health.Service)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/debug", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var debug handler.DebugResponse
	decodeEnvelope(t, resp, &debug)
	require.Equal(t, "jsonfile", debug.Backend)
	require.Equal(t, 3, debug.TotalSubmissions)
	require.Equal(t, "anthropic", debug.Provider)
	require.False(t, debug.LLMConfigured)
}
