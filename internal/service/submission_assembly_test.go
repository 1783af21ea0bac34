package service

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/models"
)

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func item(id, text string, positive bool) dto.RubricItem {
	return dto.RubricItem{ID: id, Criterion: text, IsPositive: positive}
}

func TestAssembleSubmissionEditDeleteAdd(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	req := dto.SubmissionCreateRequest{
		Email:    "Ada@Example.com",
		FullName: "Ada Lovelace",
		Prompt:   "Explain the water cycle to a ten year old",
		OriginalRubricItems: []dto.RubricItem{
			item("A", "Mentions evaporation", true),
			item("B", "Mentions condensation", true),
			item("C", "Uses jargon", false),
		},
		FinalRubricItems: []dto.RubricItem{
			item("A", "Mentions evaporation from oceans", true),
			item("C", "Uses jargon", false),
			item("D", "Includes a diagram description", true),
		},
		Actions: []dto.ActionRequest{
			{Type: models.ActionEdit, ItemID: "A", PreviousText: "Mentions evaporation", NewText: "Mentions evaporation from oceans", Justification: "more specific"},
			{Type: models.ActionDelete, ItemID: "B", PreviousText: "Mentions condensation", Justification: "covered elsewhere"},
			{Type: models.ActionAdd, ItemID: "D", NewText: "Includes a diagram description", Justification: "visual learners"},
		},
	}

	submission := AssembleSubmission(req, sequentialIDs(), now)

	require.Equal(t, "id-1", submission.ID)
	require.Equal(t, "ada@example.com", submission.Email)
	require.Len(t, submission.Criteria, 4)

	statuses := map[string]models.Criterion{}
	for _, c := range submission.Criteria {
		statuses[c.OriginalID] = c
		require.Equal(t, submission.ID, c.SubmissionID)
	}
	require.Equal(t, models.CriterionStatusEdited, statuses["A"].Status)
	require.Equal(t, "Mentions evaporation", statuses["A"].Text, "original text is immutable")
	require.NotNil(t, statuses["A"].FinalText)
	require.Equal(t, "Mentions evaporation from oceans", *statuses["A"].FinalText)
	require.Equal(t, models.CriterionStatusDeleted, statuses["B"].Status)
	require.Equal(t, models.CriterionStatusActive, statuses["C"].Status)
	require.Nil(t, statuses["C"].FinalText)
	require.Equal(t, models.CriterionStatusActive, statuses["D"].Status)
	require.Equal(t, models.CriterionSourceUser, statuses["D"].Source)
	require.Equal(t, 2, statuses["D"].Order, "user-added order is the final index")
	require.Equal(t, 2, statuses["C"].Order, "original order is the original index")

	require.Equal(t, 3, submission.OriginalCount)
	require.Equal(t, 3, submission.FinalCount)
	require.Equal(t, 1, submission.DeletedCount)
	require.Equal(t, 1, submission.EditedCount)
	require.Equal(t, 1, submission.AddedCount)

	require.Len(t, submission.Actions, 3)
	for i, action := range submission.Actions {
		require.NotNil(t, action.CriterionID, "action %d resolves", i)
		require.Equal(t, statuses[action.ItemID].ID, *action.CriterionID)
	}
	require.True(t, submission.Actions[0].Timestamp.Before(submission.Actions[1].Timestamp))
}

func TestAssembleSubmissionKeepsUnresolvedActions(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	req := dto.SubmissionCreateRequest{
		OriginalRubricItems: []dto.RubricItem{item("A", "Mentions rain", true)},
		FinalRubricItems:    []dto.RubricItem{item("A", "Mentions rain", true)},
		Actions: []dto.ActionRequest{
			{Type: models.ActionEdit, ItemID: "ghost", Justification: "changed my mind", Timestamp: &stamp},
		},
	}

	submission := AssembleSubmission(req, sequentialIDs(), time.Now())
	require.Len(t, submission.Actions, 1)
	require.Nil(t, submission.Actions[0].CriterionID)
	require.Equal(t, "ghost", submission.Actions[0].ItemID)
	require.True(t, submission.Actions[0].Timestamp.Equal(stamp))
}

func TestAssembleSubmissionCountInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		originalSize := rng.Intn(12)
		original := make([]dto.RubricItem, 0, originalSize)
		for i := 0; i < originalSize; i++ {
			original = append(original, item(fmt.Sprintf("o%d", i), fmt.Sprintf("Mentions fact %d", i), rng.Intn(2) == 0))
		}

		final := make([]dto.RubricItem, 0)
		var actions []dto.ActionRequest
		for _, it := range original {
			switch rng.Intn(3) {
			case 0:
				actions = append(actions, dto.ActionRequest{Type: models.ActionDelete, ItemID: it.ID, Justification: "drop"})
			case 1:
				edited := it
				edited.Criterion += " precisely"
				final = append(final, edited)
				actions = append(actions, dto.ActionRequest{Type: models.ActionEdit, ItemID: it.ID, Justification: "tighten"})
			default:
				final = append(final, it)
			}
		}
		for i := rng.Intn(5); i > 0; i-- {
			added := item(fmt.Sprintf("n%d-%d", round, i), fmt.Sprintf("Includes detail %d", i), true)
			final = append(final, added)
			actions = append(actions, dto.ActionRequest{Type: models.ActionAdd, ItemID: added.ID, Justification: "missing"})
		}
		rng.Shuffle(len(final), func(i, j int) { final[i], final[j] = final[j], final[i] })

		submission := AssembleSubmission(dto.SubmissionCreateRequest{
			OriginalRubricItems: original,
			FinalRubricItems:    final,
			Actions:             actions,
		}, sequentialIDs(), time.Now())

		require.Equal(t, submission.OriginalCount-submission.DeletedCount+submission.AddedCount, submission.FinalCount, "round %d", round)
		require.Len(t, submission.Criteria, submission.OriginalCount+submission.AddedCount)
		require.Len(t, submission.Actions, len(actions))
	}
}
