package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/repository"
	"github.com/noah-isme/rubric-review-api/internal/service"
	"github.com/noah-isme/rubric-review-api/internal/utils"
	"github.com/noah-isme/rubric-review-api/pkg/ai"
)

// AdminServices groups the services used by the admin endpoints.
type AdminServices struct {
	Reviews   service.ReviewService
	Grading   service.GradingService
	Dashboard service.DashboardService
	Export    service.ExportService
}

// AdminHandler exposes reviewer endpoints.
type AdminHandler struct {
	services AdminServices
	logger   zerolog.Logger
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(services AdminServices, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		services: services,
		logger:   logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches admin routes to the (already protected) router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/submissions", h.submissions)
	router.Post("/grade-submission", h.grade)
	router.Post("/grade-ungraded", h.gradeUngraded)
	router.Get("/dashboard", h.dashboard)
	router.Get("/export", h.export)
}

func (h *AdminHandler) submissions(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		graded, err := h.services.Reviews.ListGraded(c.UserContext())
		if err != nil {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to list graded submissions")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to list graded submissions")
		}
		return utils.SendSuccess(c, "graded submissions retrieved", graded)
	}

	detail, err := h.services.Reviews.Detail(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("submission_id", id).Msg("failed to load submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load submission")
	}
	return utils.SendSuccess(c, "submission retrieved", detail)
}

func (h *AdminHandler) grade(c *fiber.Ctx) error {
	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.SubmissionID = strings.TrimSpace(payload.SubmissionID)
	if payload.SubmissionID == "" {
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid payload", map[string]string{"submissionId": "required"})
	}

	log := requestLogger(h.logger, c)
	outcome, err := h.services.Grading.Grade(c.UserContext(), payload.SubmissionID, service.GradeOptions{WithImprovements: true})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, ai.ErrNotConfigured):
			log.Error().Err(err).Msg("grading requested without a configured model")
			return utils.SendError(c, fiber.StatusInternalServerError, "grading model is not configured")
		default:
			log.Error().Err(err).Str("submission_id", payload.SubmissionID).Str("reviewer", subjectFromContext(c)).Msg("grading failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to grade submission")
		}
	}

	switch outcome.Status {
	case dto.GradeStatusPartial:
		log.Warn().Str("submission_id", outcome.SubmissionID).Strs("warnings", outcome.Warnings).Msg("submission partially graded")
		return utils.SendSuccessWithStatus(c, fiber.StatusMultiStatus, "submission partially graded", outcome)
	case dto.GradeStatusSkipped:
		return utils.SendSuccess(c, "submission already graded", outcome)
	default:
		return utils.SendSuccess(c, "submission graded", outcome)
	}
}

func (h *AdminHandler) gradeUngraded(c *fiber.Ctx) error {
	result, err := h.services.Grading.GradeUngraded(c.UserContext(), service.GradeOptions{})
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return utils.SendError(c, fiber.StatusInternalServerError, "grading model is not configured")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("batch grading failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to grade submissions")
	}

	if result.Failed > 0 {
		return utils.SendSuccessWithStatus(c, fiber.StatusMultiStatus, "some submissions could not be graded", result)
	}
	return utils.SendSuccess(c, "ungraded submissions processed", result)
}

func (h *AdminHandler) dashboard(c *fiber.Ctx) error {
	summary, err := h.services.Dashboard.Summary(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build dashboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build dashboard")
	}
	return utils.SendSuccess(c, "dashboard retrieved", summary)
}

func (h *AdminHandler) export(c *fiber.Ctx) error {
	kind := strings.ToLower(strings.TrimSpace(c.Query("type")))
	file, err := h.services.Export.Export(c.UserContext(), kind)
	if err != nil {
		if errors.Is(err, service.ErrUnknownExportType) {
			return utils.SendError(c, fiber.StatusBadRequest, "type must be users or submissions")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("type", kind).Msg("export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to export data")
	}

	c.Attachment(file.FileName)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Status(fiber.StatusOK).Send(file.Content)
}
