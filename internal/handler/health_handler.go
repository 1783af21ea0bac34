package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubric-review-api/internal/config"
	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/service"
	"github.com/noah-isme/rubric-review-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// DebugResponse describes the runtime wiring of the service.
type DebugResponse struct {
	dto.StoreStats
	Provider      string `json:"provider"`
	LLMConfigured bool   `json:"llmConfigured"`
	Trigger       string `json:"trigger"`
	Environment   string `json:"environment"`
}

// DebugInfo describes the active wiring reported by the debug endpoint.
type DebugInfo struct {
	Provider      string
	LLMConfigured bool
	Trigger       string
}

// DebugHandler reports storage backend, LLM provider and submission counts.
func DebugHandler(cfg config.Config, reviews service.ReviewService, info DebugInfo, logger zerolog.Logger) fiber.Handler {
	log := logger.With().Str("component", "debug_handler").Logger()
	return func(c *fiber.Ctx) error {
		stats, err := reviews.Stats(c.UserContext())
		if err != nil {
			requestLogger(log, c).Error().Err(err).Msg("failed to collect store stats")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to collect store stats")
		}

		return utils.SendSuccess(c, "debug info", DebugResponse{
			StoreStats:    stats,
			Provider:      info.Provider,
			LLMConfigured: info.LLMConfigured,
			Trigger:       info.Trigger,
			Environment:   cfg.AppEnv,
		})
	}
}
