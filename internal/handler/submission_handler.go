package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/service"
	"github.com/noah-isme/rubric-review-api/internal/utils"
)

// SubmissionHandler accepts edited rubrics from users.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the submission routes.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.list)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Submit(c.UserContext(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to store submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", response)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	submissions, err := h.service.List(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}
