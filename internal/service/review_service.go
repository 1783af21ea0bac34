package service

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/repository"
)

// ReviewService exposes submissions to reviewers.
type ReviewService interface {
	Detail(ctx context.Context, id string) (dto.SubmissionDetailResponse, error)
	ListGraded(ctx context.Context) ([]dto.GradedSubmissionSummary, error)
	Stats(ctx context.Context) (dto.StoreStats, error)
}

type reviewService struct {
	store  repository.SubmissionStore
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewReviewService constructs the reviewer read path.
func NewReviewService(store repository.SubmissionStore, logger zerolog.Logger) ReviewService {
	return &reviewService{
		store:  store,
		logger: logger.With().Str("component", "review_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/rubric-review-api/internal/service/review"),
	}
}

func (s *reviewService) Detail(ctx context.Context, id string) (dto.SubmissionDetailResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.detail", trace.WithAttributes(attribute.String("submission.id", id)))
	defer span.End()

	submission, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrSubmissionNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
		}
		return dto.SubmissionDetailResponse{}, err
	}

	grading, err := submission.Grading()
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("submission_id", id).Msg("stored grading result is unreadable")
		grading = nil
	}

	return dto.NewSubmissionDetailResponse(submission, grading), nil
}

// ListGraded returns graded submissions, best combined score first.
func (s *reviewService) ListGraded(ctx context.Context) ([]dto.GradedSubmissionSummary, error) {
	ctx, span := s.tracer.Start(ctx, "review.list_graded")
	defer span.End()

	submissions, err := s.store.ListDashboardSubmissions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}

	summaries := make([]dto.GradedSubmissionSummary, 0, len(submissions))
	for _, submission := range submissions {
		grading, err := submission.Grading()
		if err != nil || grading == nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("skipping unreadable grading result")
			continue
		}
		summaries = append(summaries, dto.NewGradedSubmissionSummary(submission, grading))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CombinedScore > summaries[j].CombinedScore
	})
	span.SetAttributes(attribute.Int("submission.count", len(summaries)))
	return summaries, nil
}

func (s *reviewService) Stats(ctx context.Context) (dto.StoreStats, error) {
	graded, err := s.store.ListDashboardSubmissions(ctx)
	if err != nil {
		return dto.StoreStats{}, err
	}
	ungraded, err := s.store.ListUngraded(ctx)
	if err != nil {
		return dto.StoreStats{}, err
	}
	return dto.StoreStats{
		Backend:          s.store.Backend(),
		TotalSubmissions: len(graded) + len(ungraded),
		Graded:           len(graded),
		Ungraded:         len(ungraded),
	}, nil
}
