package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/rubric"
	"github.com/noah-isme/rubric-review-api/internal/service"
	"github.com/noah-isme/rubric-review-api/internal/utils"
)

// RubricHandler exposes rubric generation and validation.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler constructs a rubric handler.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches the rubric routes. generateMiddleware runs in front of
// generation only, typically a rate limiter.
func (h *RubricHandler) Register(router fiber.Router, generateMiddleware ...fiber.Handler) {
	generate := append(append([]fiber.Handler{}, generateMiddleware...), h.generate)
	router.Post("/", generate...)
	router.Post("/validate", h.validate)
}

func (h *RubricHandler) generate(c *fiber.Ctx) error {
	var payload dto.RubricGenerateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Generate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err, "failed to generate rubric")
	}

	message := "rubric generated"
	if response.Mock {
		message = "sample rubric returned"
	}
	return utils.SendSuccess(c, message, response)
}

func (h *RubricHandler) validate(c *fiber.Ctx) error {
	var payload dto.RubricValidateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	report, err := h.service.Validate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err, "failed to validate rubric")
	}

	return utils.SendSuccess(c, "rubric validated", report)
}

func (h *RubricHandler) handleError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	case errors.Is(err, service.ErrPromptTooVague), errors.Is(err, rubric.ErrInvalidInput):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNameConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
