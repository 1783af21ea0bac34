package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/models"
	"github.com/noah-isme/rubric-review-api/internal/repository"
)

type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingTrigger) Trigger(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return r.err
}

func validSubmissionRequest() dto.SubmissionCreateRequest {
	return dto.SubmissionCreateRequest{
		Email:    "Ada@Example.com",
		FullName: "Ada Lovelace",
		Prompt:   "Explain <b>photosynthesis</b> to a biology student",
		OriginalRubricItems: []dto.RubricItem{
			{ID: "a", Criterion: "Mentions chlorophyll", IsPositive: true},
			{ID: "b", Criterion: "Mentions sunlight", IsPositive: true},
		},
		FinalRubricItems: []dto.RubricItem{
			{ID: "a", Criterion: "Mentions chlorophyll in leaves<script>alert(1)</script>", IsPositive: true},
		},
		Actions: []dto.ActionRequest{
			{Type: models.ActionEdit, ItemID: "a", Justification: "tighter <i>wording</i>"},
			{Type: models.ActionDelete, ItemID: "b", Justification: "obvious"},
		},
	}
}

func TestSubmissionServiceSubmitPersistsAndTriggers(t *testing.T) {
	db := setupTestDB(t)
	store := repository.NewSubmissionRepository(db)
	users := repository.NewUserRepository(db)
	trigger := &recordingTrigger{}
	svc := NewSubmissionService(store, users, trigger, validator.New(), testLogger())

	response, err := svc.Submit(context.Background(), validSubmissionRequest())
	require.NoError(t, err)
	require.NotEmpty(t, response.SubmissionID)
	require.Equal(t, []string{response.SubmissionID}, trigger.ids)

	stored, err := store.GetSubmission(context.Background(), response.SubmissionID)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", stored.Email)
	require.Equal(t, "Explain photosynthesis to a biology student", stored.Prompt)
	require.NotNil(t, stored.UserID)
	require.Len(t, stored.Criteria, 2)
	require.Len(t, stored.Actions, 2)
	require.Equal(t, "tighter wording", stored.Actions[0].Justification)
	require.Equal(t, 1, stored.EditedCount)
	require.Equal(t, 1, stored.DeletedCount)
	require.Equal(t, stored.OriginalCount-stored.DeletedCount+stored.AddedCount, stored.FinalCount)

	for _, c := range stored.Criteria {
		if c.OriginalID == "a" {
			require.Equal(t, "Mentions chlorophyll in leaves", c.CurrentText(), "markup is stripped")
			require.Equal(t, models.CriterionStatusEdited, c.Status)
		}
	}

	user, err := users.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, *stored.UserID, user.ID)

	summaries, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.False(t, summaries[0].IsGraded)
}

func TestSubmissionServiceIgnoresTriggerFailure(t *testing.T) {
	store := setupJSONStore(t)
	trigger := &recordingTrigger{err: errors.New("nats unavailable")}
	svc := NewSubmissionService(store, store.Users(), trigger, validator.New(), testLogger())

	response, err := svc.Submit(context.Background(), validSubmissionRequest())
	require.NoError(t, err)

	_, err = store.GetSubmission(context.Background(), response.SubmissionID)
	require.NoError(t, err)
}

func TestSubmissionServiceRejectsInvalidPayload(t *testing.T) {
	store := setupJSONStore(t)
	trigger := &recordingTrigger{}
	svc := NewSubmissionService(store, nil, trigger, validator.New(), testLogger())

	req := validSubmissionRequest()
	req.Actions[0].Justification = ""
	_, err := svc.Submit(context.Background(), req)

	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))
	require.Empty(t, trigger.ids)

	all, err := store.ListSubmissions(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestAsyncGradingTriggerRunsInBackground(t *testing.T) {
	grading := &channelGrader{calls: make(chan string, 1)}
	trigger := NewAsyncGradingTrigger(grading, time.Second, testLogger())

	require.NoError(t, trigger.Trigger(context.Background(), "s1"))
	select {
	case id := <-grading.calls:
		require.Equal(t, "s1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("grading was not triggered")
	}
}

func TestGradingWorkerHandlesRequests(t *testing.T) {
	grading := &channelGrader{calls: make(chan string, 1)}
	worker := NewGradingWorker(nil, "rubric.grading", "graders", grading, time.Second, testLogger())

	worker.handle(context.Background(), []byte(`{"submissionId": "s7"}`))
	require.Equal(t, "s7", <-grading.calls)

	worker.handle(context.Background(), []byte(`not json`))
	worker.handle(context.Background(), []byte(`{}`))
	require.Empty(t, grading.calls)
}

type channelGrader struct {
	calls chan string
}

func (c *channelGrader) Grade(_ context.Context, id string, _ GradeOptions) (dto.GradeOutcome, error) {
	c.calls <- id
	return dto.GradeOutcome{SubmissionID: id, Status: dto.GradeStatusGraded}, nil
}

func (c *channelGrader) GradeUngraded(context.Context, GradeOptions) (dto.BatchGradeResponse, error) {
	return dto.BatchGradeResponse{}, nil
}
