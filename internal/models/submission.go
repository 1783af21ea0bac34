package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Criterion provenance values.
const (
	CriterionSourceAI   = "ai_generated"
	CriterionSourceUser = "user_added"
)

// Criterion lifecycle values.
const (
	CriterionStatusActive  = "active"
	CriterionStatusEdited  = "edited"
	CriterionStatusDeleted = "deleted"
)

// Action kinds recorded for user edits.
const (
	ActionAdd    = "add"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Submission is one user's rubric-authoring session.
type Submission struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	UserID        *uint             `gorm:"index" json:"userId,omitempty"`
	Email         string            `gorm:"size:255;index;not null" json:"email"`
	FullName      string            `gorm:"size:255;not null" json:"fullName"`
	Prompt        string            `gorm:"type:text;not null" json:"prompt"`
	OriginalCount int               `gorm:"not null;default:0" json:"originalCount"`
	FinalCount    int               `gorm:"not null;default:0" json:"finalCount"`
	AddedCount    int               `gorm:"not null;default:0" json:"addedCount"`
	EditedCount   int               `gorm:"not null;default:0" json:"editedCount"`
	DeletedCount  int               `gorm:"not null;default:0" json:"deletedCount"`
	GradingResult datatypes.JSON    `json:"gradingResult,omitempty"`
	GradedAt      *time.Time        `json:"gradedAt,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	Criteria      []Criterion       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria,omitempty"`
	Actions       []CriterionAction `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"actions,omitempty"`
}

// Criterion is a single rubric statement owned by a submission.
type Criterion struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	SubmissionID string    `gorm:"size:36;index;not null" json:"submissionId"`
	OriginalID   string    `gorm:"size:128;index" json:"originalId"`
	Text         string    `gorm:"type:text;not null" json:"text"`
	FinalText    *string   `gorm:"type:text" json:"finalText,omitempty"`
	IsPositive   bool      `gorm:"not null" json:"isPositive"`
	Category     string    `gorm:"size:128" json:"category,omitempty"`
	Source       string    `gorm:"size:32;not null" json:"source"`
	Status       string    `gorm:"size:32;not null" json:"status"`
	Order        int       `gorm:"column:position;not null" json:"order"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CurrentText returns the text the criterion carries in the final rubric.
func (c Criterion) CurrentText() string {
	if c.FinalText != nil {
		return *c.FinalText
	}
	return c.Text
}

// CriterionAction is an immutable audit record of one user edit.
type CriterionAction struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	SubmissionID  string    `gorm:"size:36;index;not null" json:"submissionId"`
	CriterionID   *string   `gorm:"size:36;index" json:"criterionId,omitempty"`
	ItemID        string    `gorm:"size:128" json:"itemId,omitempty"`
	Type          string    `gorm:"size:16;not null" json:"type"`
	PreviousText  string    `gorm:"type:text" json:"previousText,omitempty"`
	NewText       string    `gorm:"type:text" json:"newText,omitempty"`
	PreviousOrder *int      `json:"previousOrder,omitempty"`
	NewOrder      *int      `json:"newOrder,omitempty"`
	Justification string    `gorm:"type:text;not null" json:"justification"`
	Timestamp     time.Time `gorm:"column:occurred_at;not null" json:"timestamp"`
}

// Grading decodes the stored grading result. It returns nil when the
// submission has not been graded.
func (s Submission) Grading() (*GradingResult, error) {
	if len(s.GradingResult) == 0 || string(s.GradingResult) == "null" {
		return nil, nil
	}
	var result GradingResult
	if err := json.Unmarshal(s.GradingResult, &result); err != nil {
		return nil, fmt.Errorf("decode grading result for submission %s: %w", s.ID, err)
	}
	return &result, nil
}

// SetGrading encodes result into the grading column.
func (s *Submission) SetGrading(result *GradingResult) error {
	if result == nil {
		s.GradingResult = nil
		s.GradedAt = nil
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode grading result: %w", err)
	}
	s.GradingResult = datatypes.JSON(payload)
	gradedAt := result.GradedAt
	s.GradedAt = &gradedAt
	return nil
}

// IsGraded reports whether a grading result is attached.
func (s Submission) IsGraded() bool {
	return len(s.GradingResult) > 0 && string(s.GradingResult) != "null"
}
