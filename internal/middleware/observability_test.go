package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubric-review-api/internal/observability"
)

func TestObservabilityCountsAdminRoutesOnly(t *testing.T) {
	app := fiber.New()
	app.Use(Observability(zerolog.Nop()))
	app.Get(AdminPathPrefix+"/dashboard", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get(AdminPathPrefix+"/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	app.Get("/api/v1/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	route := AdminPathPrefix + "/dashboard"
	before := testutil.ToFloat64(observability.AdminRequests().WithLabelValues(http.MethodGet, route, "200"))
	errorsBefore := testutil.ToFloat64(observability.AdminErrors().WithLabelValues(http.MethodGet, AdminPathPrefix+"/missing", "404"))

	for _, path := range []string{route, AdminPathPrefix + "/missing", "/api/v1/health"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
	}

	require.Equal(t, before+1, testutil.ToFloat64(observability.AdminRequests().WithLabelValues(http.MethodGet, route, "200")))
	require.Equal(t, errorsBefore+1, testutil.ToFloat64(observability.AdminErrors().WithLabelValues(http.MethodGet, AdminPathPrefix+"/missing", "404")))
	require.Zero(t, testutil.ToFloat64(observability.AdminRequests().WithLabelValues(http.MethodGet, "/api/v1/health", "200")))
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=50ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=1s", latencyBucket(800*time.Millisecond))
	require.Equal(t, "<=60s", latencyBucket(30*time.Second))
	require.Equal(t, ">60s", latencyBucket(2*time.Minute))
}
