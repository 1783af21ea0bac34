package dto

import (
	"time"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

// SubmissionCreateRequest is the payload posted when a user submits an edited rubric.
type SubmissionCreateRequest struct {
	Email               string          `json:"email" validate:"required,email"`
	FullName            string          `json:"fullName" validate:"required,min=2,max=255"`
	Prompt              string          `json:"prompt" validate:"required"`
	OriginalRubricItems []RubricItem    `json:"originalRubricItems" validate:"required,dive"`
	FinalRubricItems    []RubricItem    `json:"finalRubricItems" validate:"required,dive"`
	Actions             []ActionRequest `json:"actions" validate:"dive"`
}

// ActionRequest records one add/edit/delete performed by the user.
type ActionRequest struct {
	Type          string     `json:"type" validate:"required,oneof=add edit delete"`
	ItemID        string     `json:"itemId" validate:"max=128"`
	PreviousText  string     `json:"previousText"`
	NewText       string     `json:"newText"`
	PreviousOrder *int       `json:"previousOrder"`
	NewOrder      *int       `json:"newOrder"`
	Justification string     `json:"justification" validate:"required"`
	Timestamp     *time.Time `json:"timestamp"`
}

// SubmissionCreateResponse acknowledges a persisted submission.
type SubmissionCreateResponse struct {
	SubmissionID string `json:"submissionId"`
}

// SubmissionSummary is the lightweight listing shape of a submission.
type SubmissionSummary struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	PromptPreview string    `json:"promptPreview"`
	OriginalCount int       `json:"originalCount"`
	FinalCount    int       `json:"finalCount"`
	AddedCount    int       `json:"addedCount"`
	EditedCount   int       `json:"editedCount"`
	DeletedCount  int       `json:"deletedCount"`
	IsGraded      bool      `json:"isGraded"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CriterionResponse serializes a stored criterion.
type CriterionResponse struct {
	ID         string  `json:"id"`
	OriginalID string  `json:"originalId"`
	Text       string  `json:"text"`
	FinalText  *string `json:"finalText,omitempty"`
	IsPositive bool    `json:"isPositive"`
	Category   string  `json:"category,omitempty"`
	Source     string  `json:"source"`
	Status     string  `json:"status"`
	Order      int     `json:"order"`
}

// ActionResponse serializes a stored criterion action.
type ActionResponse struct {
	ID            string    `json:"id"`
	CriterionID   *string   `json:"criterionId"`
	ItemID        string    `json:"itemId,omitempty"`
	Type          string    `json:"type"`
	PreviousText  string    `json:"previousText,omitempty"`
	NewText       string    `json:"newText,omitempty"`
	PreviousOrder *int      `json:"previousOrder,omitempty"`
	NewOrder      *int      `json:"newOrder,omitempty"`
	Justification string    `json:"justification"`
	Timestamp     time.Time `json:"timestamp"`
}

// SubmissionDetailResponse is the full evaluation view of one submission.
type SubmissionDetailResponse struct {
	SubmissionSummary
	Prompt        string                `json:"prompt"`
	Criteria      []CriterionResponse   `json:"criteria"`
	Actions       []ActionResponse      `json:"actions"`
	Grading       *models.GradingResult `json:"gradingResult"`
	CombinedScore *int                  `json:"combinedScore,omitempty"`
}

const promptPreviewLength = 160

// NewSubmissionSummary converts a submission model into its listing shape.
func NewSubmissionSummary(model models.Submission) SubmissionSummary {
	preview := []rune(model.Prompt)
	if len(preview) > promptPreviewLength {
		preview = append(preview[:promptPreviewLength], '…')
	}
	return SubmissionSummary{
		ID:            model.ID,
		Email:         model.Email,
		FullName:      model.FullName,
		PromptPreview: string(preview),
		OriginalCount: model.OriginalCount,
		FinalCount:    model.FinalCount,
		AddedCount:    model.AddedCount,
		EditedCount:   model.EditedCount,
		DeletedCount:  model.DeletedCount,
		IsGraded:      model.IsGraded(),
		CreatedAt:     model.CreatedAt,
	}
}

// NewSubmissionDetailResponse converts a submission and its decoded grading result.
func NewSubmissionDetailResponse(model models.Submission, grading *models.GradingResult) SubmissionDetailResponse {
	response := SubmissionDetailResponse{
		SubmissionSummary: NewSubmissionSummary(model),
		Prompt:            model.Prompt,
		Criteria:          make([]CriterionResponse, 0, len(model.Criteria)),
		Actions:           make([]ActionResponse, 0, len(model.Actions)),
		Grading:           grading,
	}

	for _, c := range model.Criteria {
		response.Criteria = append(response.Criteria, CriterionResponse{
			ID:         c.ID,
			OriginalID: c.OriginalID,
			Text:       c.Text,
			FinalText:  c.FinalText,
			IsPositive: c.IsPositive,
			Category:   c.Category,
			Source:     c.Source,
			Status:     c.Status,
			Order:      c.Order,
		})
	}

	for _, a := range model.Actions {
		response.Actions = append(response.Actions, ActionResponse{
			ID:            a.ID,
			CriterionID:   a.CriterionID,
			ItemID:        a.ItemID,
			Type:          a.Type,
			PreviousText:  a.PreviousText,
			NewText:       a.NewText,
			PreviousOrder: a.PreviousOrder,
			NewOrder:      a.NewOrder,
			Justification: a.Justification,
			Timestamp:     a.Timestamp,
		})
	}

	if grading != nil {
		combined := grading.CombinedScore()
		response.CombinedScore = &combined
	}

	return response
}
