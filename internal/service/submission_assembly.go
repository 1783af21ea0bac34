package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/models"
)

// IDGenerator returns fresh opaque identifiers.
type IDGenerator func() string

// UUIDGenerator issues random UUID strings.
func UUIDGenerator() string {
	return uuid.NewString()
}

// AssembleSubmission turns the original rubric, the edited final rubric and the
// user's actions into a persistable submission aggregate. It does not validate
// that the actions agree with the edit delta.
func AssembleSubmission(req dto.SubmissionCreateRequest, nextID IDGenerator, now time.Time) models.Submission {
	if nextID == nil {
		nextID = UUIDGenerator
	}

	submission := models.Submission{
		ID:            nextID(),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:      strings.TrimSpace(req.FullName),
		Prompt:        req.Prompt,
		OriginalCount: len(req.OriginalRubricItems),
		FinalCount:    len(req.FinalRubricItems),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	originals := make(map[string]dto.RubricItem, len(req.OriginalRubricItems))
	for _, item := range req.OriginalRubricItems {
		originals[item.ID] = item
	}
	finals := make(map[string]dto.RubricItem, len(req.FinalRubricItems))
	for _, item := range req.FinalRubricItems {
		finals[item.ID] = item
	}

	criteria := make([]models.Criterion, 0, len(req.OriginalRubricItems)+len(req.FinalRubricItems))
	for index, item := range req.OriginalRubricItems {
		criterion := models.Criterion{
			ID:           nextID(),
			SubmissionID: submission.ID,
			OriginalID:   item.ID,
			Text:         item.Criterion,
			IsPositive:   item.IsPositive,
			Category:     item.Category,
			Source:       models.CriterionSourceAI,
			Status:       models.CriterionStatusActive,
			Order:        index,
			CreatedAt:    now,
		}

		final, kept := finals[item.ID]
		switch {
		case !kept:
			criterion.Status = models.CriterionStatusDeleted
			submission.DeletedCount++
		case final.Criterion != item.Criterion:
			text := final.Criterion
			criterion.FinalText = &text
			criterion.Status = models.CriterionStatusEdited
			submission.EditedCount++
		}
		criteria = append(criteria, criterion)
	}

	for index, item := range req.FinalRubricItems {
		if _, original := originals[item.ID]; original {
			continue
		}
		criteria = append(criteria, models.Criterion{
			ID:           nextID(),
			SubmissionID: submission.ID,
			OriginalID:   item.ID,
			Text:         item.Criterion,
			IsPositive:   item.IsPositive,
			Category:     item.Category,
			Source:       models.CriterionSourceUser,
			Status:       models.CriterionStatusActive,
			Order:        index,
			CreatedAt:    now,
		})
		submission.AddedCount++
	}

	// Clients only know the pre-persistence item ids, so actions resolve
	// against OriginalID rather than the freshly issued criterion id.
	byOriginalID := make(map[string]string, len(criteria))
	for _, criterion := range criteria {
		if _, seen := byOriginalID[criterion.OriginalID]; !seen {
			byOriginalID[criterion.OriginalID] = criterion.ID
		}
	}

	actions := make([]models.CriterionAction, 0, len(req.Actions))
	for index, action := range req.Actions {
		record := models.CriterionAction{
			ID:            nextID(),
			SubmissionID:  submission.ID,
			ItemID:        action.ItemID,
			Type:          action.Type,
			PreviousText:  action.PreviousText,
			NewText:       action.NewText,
			PreviousOrder: action.PreviousOrder,
			NewOrder:      action.NewOrder,
			Justification: action.Justification,
			Timestamp:     now.Add(time.Duration(index) * time.Millisecond),
		}
		if action.Timestamp != nil && !action.Timestamp.IsZero() {
			record.Timestamp = action.Timestamp.UTC()
		}
		if id, ok := byOriginalID[action.ItemID]; ok && action.ItemID != "" {
			resolved := id
			record.CriterionID = &resolved
		}
		actions = append(actions, record)
	}

	submission.Criteria = criteria
	submission.Actions = actions
	return submission
}
