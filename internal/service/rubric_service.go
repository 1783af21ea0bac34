package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/repository"
	"github.com/noah-isme/rubric-review-api/internal/rubric"
	"github.com/noah-isme/rubric-review-api/pkg/ai"
)

var (
	// ErrPromptTooVague indicates the prompt is too short to build a rubric for.
	ErrPromptTooVague = errors.New("prompt is too vague to generate a rubric")
	// ErrNameConflict indicates the email is registered under another name.
	ErrNameConflict = errors.New("email already registered under a different name")
)

const (
	minPromptChars = 20
	minPromptWords = 4
)

// RubricService generates and validates rubrics.
type RubricService interface {
	Generate(ctx context.Context, req dto.RubricGenerateRequest) (dto.RubricGenerateResponse, error)
	Validate(ctx context.Context, req dto.RubricValidateRequest) (rubric.Report, error)
}

type rubricService struct {
	client    ai.Client
	users     repository.UserStore
	validator *validator.Validate
	cfg       GradingConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewRubricService constructs the rubric workflow. A nil client serves the
// sample rubric for every request.
func NewRubricService(client ai.Client, users repository.UserStore, validate *validator.Validate, cfg GradingConfig, logger zerolog.Logger) RubricService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultGradingMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultGradingTemperature
	}
	return &rubricService{
		client:    client,
		users:     users,
		validator: validate,
		cfg:       cfg,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/rubric-review-api/internal/service/rubric"),
	}
}

func (s *rubricService) Generate(ctx context.Context, req dto.RubricGenerateRequest) (dto.RubricGenerateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "rubric.generate")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.RubricGenerateResponse{}, err
	}

	prompt := sanitizeText(req.Prompt)
	if utf8.RuneCountInString(prompt) < minPromptChars || len(strings.Fields(prompt)) < minPromptWords {
		span.SetStatus(codes.Error, "prompt too vague")
		return dto.RubricGenerateResponse{}, ErrPromptTooVague
	}

	if err := s.registerUser(ctx, req.Email, sanitizeText(req.FullName)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user registration failed")
		return dto.RubricGenerateResponse{}, err
	}

	if s.client == nil {
		span.SetAttributes(attribute.Bool("rubric.mock", true))
		return s.mockResponse("AI provider not configured; returning a sample rubric"), nil
	}

	items, err := s.requestRubric(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("rubric.mock", true))
		s.logger.Warn().Err(err).Msg("rubric generation failed, serving sample rubric")
		return s.mockResponse("AI rubric generation failed; returning a sample rubric"), nil
	}

	response := dto.RubricGenerateResponse{RubricItems: items}
	if report, err := rubric.Validate(dto.ToRubricCriteria(items)); err == nil {
		response.Validation = &report
	}
	span.SetAttributes(attribute.Int("rubric.items", len(items)))
	return response, nil
}

// registerUser enforces one name per email through the persistent user table.
func (s *rubricService) registerUser(ctx context.Context, email, fullName string) error {
	if s.users == nil {
		return nil
	}
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !strings.EqualFold(strings.TrimSpace(existing.FullName), strings.TrimSpace(fullName)) {
			return ErrNameConflict
		}
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		_, err = s.users.Upsert(ctx, email, fullName)
		return err
	default:
		return err
	}
}

type generatedRubric struct {
	RubricItems []struct {
		ID         interface{} `json:"id"`
		Criterion  string      `json:"criterion"`
		IsPositive *bool       `json:"isPositive"`
		Category   string      `json:"category"`
		Type       string      `json:"type"`
	} `json:"rubricItems"`
}

func (s *rubricService) requestRubric(ctx context.Context, prompt string) ([]dto.RubricItem, error) {
	resp, err := s.client.Complete(ctx, ai.CompletionRequest{
		System:      rubricGenerationSystemPrompt,
		Prompt:      buildRubricGenerationPrompt(prompt),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	generated, err := decodeLLMObject[generatedRubric](rubricItemsSchema, resp.Text, "rubricItems")
	if err != nil {
		return nil, err
	}

	items := make([]dto.RubricItem, 0, len(generated.RubricItems))
	seen := make(map[string]struct{}, len(generated.RubricItems))
	for i, raw := range generated.RubricItems {
		text := strings.TrimSpace(raw.Criterion)
		if text == "" {
			continue
		}
		id := ""
		if raw.ID != nil {
			id = strings.TrimSpace(fmt.Sprint(raw.ID))
		}
		if _, dup := seen[id]; id == "" || dup {
			id = fmt.Sprintf("c%d", i+1)
		}
		seen[id] = struct{}{}

		kind := strings.ToLower(strings.TrimSpace(raw.Type))
		if kind != "objective" && kind != "subjective" {
			kind = ""
		}
		items = append(items, dto.RubricItem{
			ID:         id,
			Criterion:  text,
			IsPositive: raw.IsPositive == nil || *raw.IsPositive,
			Category:   strings.TrimSpace(raw.Category),
			Type:       kind,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: rubric has no usable items", ErrInvalidLLMResponse)
	}
	return items, nil
}

func (s *rubricService) mockResponse(message string) dto.RubricGenerateResponse {
	items := sampleRubric()
	response := dto.RubricGenerateResponse{RubricItems: items, Mock: true, Message: message}
	if report, err := rubric.Validate(dto.ToRubricCriteria(items)); err == nil {
		response.Validation = &report
	}
	return response
}

func sampleRubric() []dto.RubricItem {
	return []dto.RubricItem{
		{ID: "c1", Criterion: "Mentions the main subject named in the prompt", IsPositive: true, Category: "coverage", Type: "objective"},
		{ID: "c2", Criterion: "Includes at least 2 concrete examples", IsPositive: true, Category: "coverage", Type: "objective"},
		{ID: "c3", Criterion: "Provides a direct answer in the first paragraph", IsPositive: true, Category: "structure", Type: "objective"},
		{ID: "c4", Criterion: "Explains the reasoning behind the final answer", IsPositive: true, Category: "reasoning", Type: "subjective"},
		{ID: "c5", Criterion: "Uses the output format requested by the prompt", IsPositive: true, Category: "format", Type: "objective"},
		{ID: "c6", Criterion: "Organises the response with headings per section", IsPositive: true, Category: "structure", Type: "objective"},
		{ID: "c7", Criterion: "States every numeric value with its unit", IsPositive: true, Category: "accuracy", Type: "objective"},
		{ID: "c8", Criterion: "Contains a factual error about the main subject", IsPositive: false, Category: "accuracy", Type: "objective"},
		{ID: "c9", Criterion: "Does not address the constraint given in the prompt", IsPositive: false, Category: "coverage", Type: "objective"},
		{ID: "c10", Criterion: "Exceeds 400 words in length", IsPositive: false, Category: "format", Type: "objective"},
	}
}

func (s *rubricService) Validate(ctx context.Context, req dto.RubricValidateRequest) (rubric.Report, error) {
	_, span := s.tracer.Start(ctx, "rubric.validate")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return rubric.Report{}, err
	}

	report, err := rubric.Validate(req.ToCriteria())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid criteria")
		return rubric.Report{}, err
	}
	span.SetAttributes(
		attribute.Int("rubric.issues", len(report.Issues)),
		attribute.Bool("rubric.valid", report.IsValid),
	)
	return report, nil
}
