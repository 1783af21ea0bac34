package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/observability"
	"github.com/noah-isme/rubric-review-api/internal/repository"
)

// SubmissionService accepts edited rubrics and lists stored submissions.
type SubmissionService interface {
	Submit(ctx context.Context, req dto.SubmissionCreateRequest) (dto.SubmissionCreateResponse, error)
	List(ctx context.Context) ([]dto.SubmissionSummary, error)
}

type submissionService struct {
	store     repository.SubmissionStore
	users     repository.UserStore
	trigger   GradingTrigger
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	ids       IDGenerator
	now       func() time.Time
}

// NewSubmissionService constructs the submission workflow. trigger may be nil
// to disable background grading.
func NewSubmissionService(store repository.SubmissionStore, users repository.UserStore, trigger GradingTrigger, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		store:     store,
		users:     users,
		trigger:   trigger,
		validator: validate,
		logger:    logger.With().Str("component", "submission_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/rubric-review-api/internal/service/submission"),
		ids:       UUIDGenerator,
		now:       time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, req dto.SubmissionCreateRequest) (dto.SubmissionCreateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionCreateResponse{}, err
	}

	req = sanitizeSubmission(req)
	submission := AssembleSubmission(req, s.ids, s.now().UTC())

	if s.users != nil {
		user, err := s.users.Upsert(ctx, submission.Email, submission.FullName)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "user upsert failed")
			s.logger.Error().Err(err).Str("email", maskEmailAddress(submission.Email)).Msg("failed to register user")
			return dto.SubmissionCreateResponse{}, err
		}
		if user.ID != 0 {
			id := user.ID
			submission.UserID = &id
		}
	}

	if err := s.store.AddSubmission(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		s.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("failed to store submission")
		return dto.SubmissionCreateResponse{}, err
	}
	observability.Submissions().Inc()

	span.SetAttributes(
		attribute.String("submission.id", submission.ID),
		attribute.Int("submission.criteria", len(submission.Criteria)),
		attribute.Int("submission.actions", len(submission.Actions)),
	)
	s.logger.Info().
		Str("submission_id", submission.ID).
		Str("email", maskEmailAddress(submission.Email)).
		Int("added", submission.AddedCount).
		Int("edited", submission.EditedCount).
		Int("deleted", submission.DeletedCount).
		Msg("submission stored")

	if s.trigger != nil {
		if err := s.trigger.Trigger(context.WithoutCancel(ctx), submission.ID); err != nil {
			span.RecordError(err)
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("failed to trigger grading")
		}
	}

	return dto.SubmissionCreateResponse{SubmissionID: submission.ID}, nil
}

func (s *submissionService) List(ctx context.Context) ([]dto.SubmissionSummary, error) {
	ctx, span := s.tracer.Start(ctx, "submission.list")
	defer span.End()

	submissions, err := s.store.ListSubmissions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}

	summaries := make([]dto.SubmissionSummary, 0, len(submissions))
	for _, submission := range submissions {
		summaries = append(summaries, dto.NewSubmissionSummary(submission))
	}
	span.SetAttributes(attribute.Int("submission.count", len(summaries)))
	return summaries, nil
}

func sanitizeItems(items []dto.RubricItem) []dto.RubricItem {
	cleaned := make([]dto.RubricItem, len(items))
	for i, item := range items {
		item.Criterion = sanitizeText(item.Criterion)
		item.Category = sanitizeText(item.Category)
		cleaned[i] = item
	}
	return cleaned
}

func sanitizeSubmission(req dto.SubmissionCreateRequest) dto.SubmissionCreateRequest {
	req.FullName = sanitizeText(req.FullName)
	req.Prompt = sanitizeText(req.Prompt)
	req.OriginalRubricItems = sanitizeItems(req.OriginalRubricItems)
	req.FinalRubricItems = sanitizeItems(req.FinalRubricItems)

	actions := make([]dto.ActionRequest, len(req.Actions))
	for i, action := range req.Actions {
		action.PreviousText = sanitizeText(action.PreviousText)
		action.NewText = sanitizeText(action.NewText)
		action.Justification = sanitizeText(action.Justification)
		actions[i] = action
	}
	req.Actions = actions
	return req
}
