package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/rubric-review-api/internal/models"
	"github.com/noah-isme/rubric-review-api/internal/repository"
	"github.com/noah-isme/rubric-review-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Submission{}, &models.Criterion{}, &models.CriterionAction{}))
	return db
}

func setupJSONStore(t *testing.T) *repository.JSONStore {
	t.Helper()
	store, err := repository.NewJSONStore(filepath.Join(t.TempDir(), "submissions.json"))
	require.NoError(t, err)
	return store
}

type stubLLM struct {
	mu      sync.Mutex
	calls   []ai.CompletionRequest
	respond func(req ai.CompletionRequest) (string, error)
}

func (s *stubLLM) Complete(_ context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	text, err := s.respond(req)
	if err != nil {
		return ai.CompletionResponse{}, err
	}
	return ai.CompletionResponse{Text: text, Model: "stub-model"}, nil
}

func (s *stubLLM) Provider() string { return "stub" }

func (s *stubLLM) callsFor(system string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if call.System == system {
			n++
		}
	}
	return n
}

// gradingResponder answers each grading phase with the given text.
func gradingResponder(rubricText, promptText, improvementsText string) func(ai.CompletionRequest) (string, error) {
	return func(req ai.CompletionRequest) (string, error) {
		switch req.System {
		case rubricGradingSystemPrompt:
			return rubricText, nil
		case promptGradingSystemPrompt:
			return promptText, nil
		case improvementsSystemPrompt:
			return improvementsText, nil
		default:
			return "", fmt.Errorf("unexpected system prompt")
		}
	}
}

func seedSubmission(t *testing.T, store repository.SubmissionStore, id string, createdAt time.Time) models.Submission {
	t.Helper()
	submission := models.Submission{
		ID:            id,
		Email:         "ada@example.com",
		FullName:      "Ada Lovelace",
		Prompt:        "Explain the water cycle to a ten year old",
		OriginalCount: 1,
		FinalCount:    1,
		CreatedAt:     createdAt,
		Criteria: []models.Criterion{{
			ID: id + "-c1", SubmissionID: id, OriginalID: "a", Text: "Mentions evaporation",
			IsPositive: true, Source: models.CriterionSourceAI, Status: models.CriterionStatusActive,
		}},
	}
	require.NoError(t, store.AddSubmission(context.Background(), &submission))
	return submission
}
