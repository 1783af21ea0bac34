package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/repository"
	"github.com/noah-isme/rubric-review-api/internal/rubric"
	"github.com/noah-isme/rubric-review-api/pkg/ai"
)

func generateRequest() dto.RubricGenerateRequest {
	return dto.RubricGenerateRequest{
		Prompt:   "Write a short history of the Eiffel Tower for tourists",
		Email:    "ada@example.com",
		FullName: "Ada Lovelace",
	}
}

func TestRubricServiceRejectsVaguePrompt(t *testing.T) {
	svc := NewRubricService(nil, nil, validator.New(), GradingConfig{}, testLogger())

	for _, prompt := range []string{"Write an essay", "Summarise extraordinarily"} {
		req := generateRequest()
		req.Prompt = prompt
		_, err := svc.Generate(context.Background(), req)
		require.ErrorIs(t, err, ErrPromptTooVague, prompt)
	}
}

func TestRubricServiceNameConflict(t *testing.T) {
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	svc := NewRubricService(nil, users, validator.New(), GradingConfig{}, testLogger())

	_, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	same := generateRequest()
	same.Email = "ADA@example.com"
	same.FullName = "ada lovelace"
	_, err = svc.Generate(context.Background(), same)
	require.NoError(t, err)

	other := generateRequest()
	other.FullName = "Grace Hopper"
	_, err = svc.Generate(context.Background(), other)
	require.ErrorIs(t, err, ErrNameConflict)
}

func TestRubricServiceMockWithoutClient(t *testing.T) {
	svc := NewRubricService(nil, nil, validator.New(), GradingConfig{}, testLogger())

	response, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	require.True(t, response.Mock)
	require.NotEmpty(t, response.Message)
	require.Len(t, response.RubricItems, 10)
	require.NotNil(t, response.Validation)
}

func TestRubricServiceUsesModelOutput(t *testing.T) {
	llm := &stubLLM{respond: func(req ai.CompletionRequest) (string, error) {
		require.Equal(t, rubricGenerationSystemPrompt, req.System)
		return "Sure!\n```json\n" + `{"rubricItems": [
			{"id": 1, "criterion": "States the tower opened in 1889", "isPositive": true, "type": "objective"},
			{"id": 1, "criterion": "Claims the tower is in Lyon", "isPositive": false, "type": "factual"},
			{"criterion": "   "}
		]}` + "\n```", nil
	}}
	svc := NewRubricService(llm, nil, validator.New(), GradingConfig{}, testLogger())

	response, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	require.False(t, response.Mock)
	require.Len(t, response.RubricItems, 2)
	require.Equal(t, "1", response.RubricItems[0].ID)
	require.Equal(t, "c2", response.RubricItems[1].ID, "duplicate ids are replaced")
	require.False(t, response.RubricItems[1].IsPositive)
	require.Empty(t, response.RubricItems[1].Type)
	require.NotNil(t, response.Validation)
}

func TestRubricServiceFallsBackOnModelFailure(t *testing.T) {
	llm := &stubLLM{respond: func(ai.CompletionRequest) (string, error) {
		return "", errors.New("overloaded")
	}}
	svc := NewRubricService(llm, nil, validator.New(), GradingConfig{}, testLogger())

	response, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	require.True(t, response.Mock)
}

func TestRubricServiceValidate(t *testing.T) {
	svc := NewRubricService(nil, nil, validator.New(), GradingConfig{}, testLogger())
	positive := true

	report, err := svc.Validate(context.Background(), dto.RubricValidateRequest{Criteria: []dto.ValidateCriterion{
		{ID: "x", Criterion: "Lists the capital and the population of France", IsPositive: &positive},
	}})
	require.NoError(t, err)
	require.False(t, report.IsValid)
	require.Equal(t, rubric.IssueStacked, report.Issues[0].Kind)

	_, err = svc.Validate(context.Background(), dto.RubricValidateRequest{Criteria: []dto.ValidateCriterion{{ID: "y", Criterion: "Names a river"}}})
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))
}
