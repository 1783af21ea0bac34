package dto

import "github.com/noah-isme/rubric-review-api/internal/rubric"

// RubricItem is a rubric criterion as exchanged with the client.
type RubricItem struct {
	ID         string `json:"id" validate:"required,max=128"`
	Criterion  string `json:"criterion" validate:"required"`
	IsPositive bool   `json:"isPositive"`
	Category   string `json:"category,omitempty" validate:"omitempty,max=128"`
	Type       string `json:"type,omitempty" validate:"omitempty,oneof=objective subjective"`
}

// RubricGenerateRequest asks for an AI-generated rubric for a task prompt.
type RubricGenerateRequest struct {
	Prompt   string `json:"prompt" validate:"required,min=1,max=20000"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required,min=2,max=255"`
}

// RubricGenerateResponse carries the generated rubric and its validation report.
type RubricGenerateResponse struct {
	RubricItems []RubricItem   `json:"rubricItems"`
	Validation  *rubric.Report `json:"validation,omitempty"`
	Mock        bool           `json:"_mock,omitempty"`
	Message     string         `json:"_message,omitempty"`
}

// RubricValidateRequest submits criteria for heuristic validation.
type RubricValidateRequest struct {
	Criteria []ValidateCriterion `json:"criteria" validate:"dive"`
}

// ValidateCriterion is one criterion in a validation request.
type ValidateCriterion struct {
	ID         string `json:"id"`
	Criterion  string `json:"criterion" validate:"required"`
	IsPositive *bool  `json:"isPositive" validate:"required"`
	Category   string `json:"category,omitempty"`
	Type       string `json:"type,omitempty"`
}

// ToRubricCriteria converts items into validator input.
func ToRubricCriteria(items []RubricItem) []rubric.Criterion {
	criteria := make([]rubric.Criterion, 0, len(items))
	for _, item := range items {
		criteria = append(criteria, rubric.Criterion{
			ID:         item.ID,
			Criterion:  item.Criterion,
			IsPositive: item.IsPositive,
			Category:   item.Category,
			Type:       item.Type,
		})
	}
	return criteria
}

// ToCriteria converts the request into validator input.
func (r RubricValidateRequest) ToCriteria() []rubric.Criterion {
	criteria := make([]rubric.Criterion, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		positive := c.IsPositive != nil && *c.IsPositive
		criteria = append(criteria, rubric.Criterion{
			ID:         c.ID,
			Criterion:  c.Criterion,
			IsPositive: positive,
			Category:   c.Category,
			Type:       c.Type,
		})
	}
	return criteria
}
