package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/models"
	"github.com/noah-isme/rubric-review-api/internal/observability"
	"github.com/noah-isme/rubric-review-api/internal/repository"
	"github.com/noah-isme/rubric-review-api/pkg/ai"
)

// ErrGradingFailed indicates the rubric grade could not be produced. The
// submission stays ungraded and may be graded again later.
var ErrGradingFailed = errors.New("grading failed")

const (
	defaultGradingTemperature = 0.2
	defaultGradingMaxTokens   = 2048
	defaultBatchSize          = 5
	defaultBatchDelay         = 2 * time.Second
)

// GradeOptions controls which grading phases run.
type GradeOptions struct {
	WithImprovements bool
}

// GradingConfig tunes sampling and batch pacing.
type GradingConfig struct {
	Temperature float64
	MaxTokens   int
	BatchSize   int
	BatchDelay  time.Duration
}

// GradingService grades submissions with an LLM.
type GradingService interface {
	Grade(ctx context.Context, submissionID string, opts GradeOptions) (dto.GradeOutcome, error)
	GradeUngraded(ctx context.Context, opts GradeOptions) (dto.BatchGradeResponse, error)
}

type gradingService struct {
	store  repository.SubmissionStore
	client ai.Client
	cfg    GradingConfig
	logger zerolog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGradingService constructs the grading orchestrator. A nil client makes
// every grading attempt fail with ai.ErrNotConfigured.
func NewGradingService(store repository.SubmissionStore, client ai.Client, cfg GradingConfig, logger zerolog.Logger) GradingService {
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultGradingTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultGradingMaxTokens
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	return &gradingService{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "grading_service").Logger(),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Grade runs the rubric and prompt grading calls, then optionally the
// improvements pass. A result that already has improvements is left alone; a
// result without improvements is reused and only the improvements are added.
//
// Two concurrent calls for the same ungraded submission both grade it and the
// last write wins. No claim step guards against that.
func (s *gradingService) Grade(ctx context.Context, submissionID string, opts GradeOptions) (dto.GradeOutcome, error) {
	tracer := otel.Tracer("github.com/noah-isme/rubric-review-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.grade")
	span.SetAttributes(
		attribute.String("grading.submission_id", submissionID),
		attribute.Bool("grading.with_improvements", opts.WithImprovements),
	)
	defer span.End()

	outcome := dto.GradeOutcome{SubmissionID: submissionID}

	submission, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_submission_failed")
		return outcome, err
	}

	result, err := submission.Grading()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode_grading_failed")
		return outcome, err
	}

	if result.HasImprovements() || (result != nil && !opts.WithImprovements) {
		outcome.Status = dto.GradeStatusSkipped
		outcome.Grading = result
		observability.GradingOutcomes().WithLabelValues(outcome.Status).Inc()
		span.SetAttributes(attribute.String("grading.status", outcome.Status))
		return outcome, nil
	}

	if s.client == nil {
		observability.GradingOutcomes().WithLabelValues("failed").Inc()
		span.SetStatus(codes.Error, "llm_not_configured")
		return outcome, fmt.Errorf("grade submission %s: %w", submissionID, ai.ErrNotConfigured)
	}

	if result == nil {
		graded, err := s.gradeSubmission(ctx, submission)
		if err != nil {
			observability.GradingOutcomes().WithLabelValues("failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "rubric_grading_failed")
			s.logger.Error().Err(err).Str("submission_id", submissionID).Msg("rubric grading failed")
			return outcome, fmt.Errorf("%w: %v", ErrGradingFailed, err)
		}
		if err := s.persist(ctx, &submission, graded); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist_grading_failed")
			return outcome, err
		}
		result = graded
	}

	if opts.WithImprovements {
		improvements, err := s.improve(ctx, submission, result)
		if err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submissionID).Msg("improvements generation failed")
			span.RecordError(err)
			outcome.Warnings = append(outcome.Warnings, "improvements unavailable: "+err.Error())
		} else {
			result.Improvements = improvements
			if err := s.persist(ctx, &submission, result); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "persist_improvements_failed")
				return outcome, err
			}
		}
	}

	if result.PromptGrade == nil {
		outcome.Warnings = append([]string{"prompt grade unavailable"}, outcome.Warnings...)
	}

	outcome.Grading = result
	outcome.Status = dto.GradeStatusGraded
	if len(outcome.Warnings) > 0 {
		outcome.Status = dto.GradeStatusPartial
	}

	observability.GradingOutcomes().WithLabelValues(outcome.Status).Inc()
	span.SetAttributes(
		attribute.String("grading.status", outcome.Status),
		attribute.Float64("grading.score", result.Score),
	)
	s.logger.Info().
		Str("submission_id", submissionID).
		Str("status", outcome.Status).
		Float64("score", result.Score).
		Int("combined_score", result.CombinedScore()).
		Msg("submission graded")

	return outcome, nil
}

// gradeSubmission runs both grading calls concurrently. Only the rubric call
// may fail the attempt; a failed prompt call yields a nil prompt grade.
func (s *gradingService) gradeSubmission(ctx context.Context, submission models.Submission) (*models.GradingResult, error) {
	var (
		rubricGrade models.GradeReport
		promptGrade *models.GradeReport
	)

	var group errgroup.Group
	group.Go(func() error {
		report, err := s.requestGrade(ctx, "rubric", rubricGradingSystemPrompt, buildRubricGradingPrompt(submission))
		if err != nil {
			return err
		}
		rubricGrade = report
		return nil
	})
	group.Go(func() error {
		report, err := s.requestGrade(ctx, "prompt", promptGradingSystemPrompt, buildPromptGradingPrompt(submission))
		if err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("prompt grading failed")
			return nil
		}
		promptGrade = &report
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &models.GradingResult{
		GradeReport: rubricGrade,
		PromptGrade: promptGrade,
		Provider:    s.client.Provider(),
		GradedAt:    s.now().UTC(),
	}, nil
}

func (s *gradingService) requestGrade(ctx context.Context, phase, system, prompt string) (models.GradeReport, error) {
	start := time.Now()
	defer func() {
		observability.GradingDuration().WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}()

	resp, err := s.client.Complete(ctx, ai.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return models.GradeReport{}, fmt.Errorf("%s grading request: %w", phase, err)
	}

	report, err := decodeLLMObject[models.GradeReport](gradeReportSchema, resp.Text, "score")
	if err != nil {
		return models.GradeReport{}, fmt.Errorf("%s grading response: %w", phase, err)
	}
	report.Score = models.ClampScore(report.Score)
	return report, nil
}

func (s *gradingService) improve(ctx context.Context, submission models.Submission, result *models.GradingResult) (*models.Improvements, error) {
	start := time.Now()
	defer func() {
		observability.GradingDuration().WithLabelValues("improvements").Observe(time.Since(start).Seconds())
	}()

	resp, err := s.client.Complete(ctx, ai.CompletionRequest{
		System:      improvementsSystemPrompt,
		Prompt:      buildImprovementsPrompt(submission, result),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("improvements request: %w", err)
	}

	improvements, err := decodeLLMObject[models.Improvements](improvementsSchema, resp.Text, "improvedPrompt")
	if err != nil {
		return nil, fmt.Errorf("improvements response: %w", err)
	}
	improvements.GeneratedAt = s.now().UTC()
	return &improvements, nil
}

func (s *gradingService) persist(ctx context.Context, submission *models.Submission, result *models.GradingResult) error {
	if err := submission.SetGrading(result); err != nil {
		return err
	}
	if err := s.store.UpdateSubmission(ctx, submission); err != nil {
		s.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("failed to store grading result")
		return fmt.Errorf("store grading result: %w", err)
	}
	return nil
}

// GradeUngraded grades every submission without a result in fixed-size
// batches. Submissions inside a batch run concurrently; batches are separated
// by a fixed delay to stay under provider rate limits.
func (s *gradingService) GradeUngraded(ctx context.Context, opts GradeOptions) (dto.BatchGradeResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/rubric-review-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.grade_ungraded")
	defer span.End()

	pending, err := s.store.ListUngraded(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_ungraded_failed")
		return dto.BatchGradeResponse{}, err
	}

	response := dto.BatchGradeResponse{Total: len(pending)}
	var mu sync.Mutex

	for start := 0; start < len(pending); start += s.cfg.BatchSize {
		if start > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				return response, err
			}
		}

		end := start + s.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		response.Batches++

		var wg sync.WaitGroup
		for _, submission := range pending[start:end] {
			id := submission.ID
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome, err := s.Grade(ctx, id, opts)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					response.Failed++
					response.Failures = append(response.Failures, dto.BatchFailure{SubmissionID: id, Error: err.Error()})
				case outcome.Partial():
					response.Partial++
				default:
					response.Graded++
				}
			}()
		}
		wg.Wait()
	}

	span.SetAttributes(
		attribute.Int("grading.total", response.Total),
		attribute.Int("grading.failed", response.Failed),
		attribute.Int("grading.batches", response.Batches),
	)
	s.logger.Info().
		Int("total", response.Total).
		Int("graded", response.Graded).
		Int("partial", response.Partial).
		Int("failed", response.Failed).
		Msg("batch grading finished")

	return response, nil
}
