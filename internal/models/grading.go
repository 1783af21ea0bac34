package models

import (
	"math"
	"time"
)

// GradeReport is the LLM assessment of either the rubric-editing process or
// the originating prompt.
type GradeReport struct {
	Score      float64            `json:"score"`
	Grade      string             `json:"grade,omitempty"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	Strengths  []string           `json:"strengths,omitempty"`
	Weaknesses []string           `json:"weaknesses,omitempty"`
	Penalties  []string           `json:"penalties,omitempty"`
	Summary    string             `json:"summary,omitempty"`
}

// ImprovedCriterion is an LLM-suggested replacement criterion.
type ImprovedCriterion struct {
	Criterion  string `json:"criterion"`
	IsPositive bool   `json:"isPositive"`
	Rationale  string `json:"rationale,omitempty"`
}

// Improvements holds an LLM-suggested better prompt and rubric.
type Improvements struct {
	ImprovedPrompt   string              `json:"improvedPrompt"`
	ImprovedCriteria []ImprovedCriterion `json:"improvedCriteria"`
	Rationale        string              `json:"rationale,omitempty"`
	GeneratedAt      time.Time           `json:"generatedAt"`
}

// GradingResult is the stored grading object. The rubric grade fields sit at
// the top level; the prompt grade is nested under promptGrade.
type GradingResult struct {
	GradeReport
	PromptGrade  *GradeReport  `json:"promptGrade"`
	Improvements *Improvements `json:"improvements,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	GradedAt     time.Time     `json:"gradedAt"`
}

// HasImprovements reports whether the improvements pass has run.
func (r *GradingResult) HasImprovements() bool {
	return r != nil && r.Improvements != nil
}

// CombinedScore is the rounded mean of the rubric and prompt scores, or the
// rubric score alone when no prompt grade exists.
func (r *GradingResult) CombinedScore() int {
	if r == nil {
		return 0
	}
	if r.PromptGrade == nil {
		return int(math.Round(r.Score))
	}
	return int(math.Round((r.Score + r.PromptGrade.Score) / 2))
}

// ClampScore bounds a score to [0, 100].
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
