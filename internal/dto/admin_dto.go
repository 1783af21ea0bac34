package dto

import (
	"time"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

// GradeSubmissionRequest triggers grading for a single submission.
type GradeSubmissionRequest struct {
	SubmissionID string `json:"submissionId" validate:"required,max=36"`
}

// Grade outcome statuses.
const (
	GradeStatusGraded  = "graded"
	GradeStatusPartial = "partial"
	GradeStatusSkipped = "skipped"
)

// GradeOutcome reports the result of a grading attempt.
type GradeOutcome struct {
	SubmissionID string                `json:"submissionId"`
	Status       string                `json:"status"`
	Grading      *models.GradingResult `json:"gradingResult"`
	Warnings     []string              `json:"warnings,omitempty"`
}

// Partial reports whether some step of the grading degraded.
func (o GradeOutcome) Partial() bool {
	return o.Status == GradeStatusPartial
}

// BatchFailure names a submission that could not be graded.
type BatchFailure struct {
	SubmissionID string `json:"submissionId"`
	Error        string `json:"error"`
}

// BatchGradeResponse summarises a bulk grading run.
type BatchGradeResponse struct {
	Total    int            `json:"total"`
	Graded   int            `json:"graded"`
	Partial  int            `json:"partial"`
	Failed   int            `json:"failed"`
	Batches  int            `json:"batches"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

// GradedSubmissionSummary lists a graded submission with derived scores.
type GradedSubmissionSummary struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName"`
	RubricScore     float64   `json:"rubricScore"`
	PromptScore     *float64  `json:"promptScore"`
	CombinedScore   int       `json:"combinedScore"`
	Grade           string    `json:"grade,omitempty"`
	HasImprovements bool      `json:"hasImprovements"`
	GradedAt        time.Time `json:"gradedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewGradedSubmissionSummary derives the graded summary for a submission.
func NewGradedSubmissionSummary(model models.Submission, grading *models.GradingResult) GradedSubmissionSummary {
	summary := GradedSubmissionSummary{
		ID:              model.ID,
		Email:           model.Email,
		FullName:        model.FullName,
		RubricScore:     grading.Score,
		CombinedScore:   grading.CombinedScore(),
		Grade:           grading.Grade,
		HasImprovements: grading.HasImprovements(),
		GradedAt:        grading.GradedAt,
		CreatedAt:       model.CreatedAt,
	}
	if grading.PromptGrade != nil {
		score := grading.PromptGrade.Score
		summary.PromptScore = &score
	}
	return summary
}

// ScoreBucket counts scores inside [Min, Max].
type ScoreBucket struct {
	Range string `json:"range"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// UserRollup aggregates one user's submissions.
type UserRollup struct {
	Email           string  `json:"email"`
	FullName        string  `json:"fullName"`
	Submissions     int     `json:"submissions"`
	Graded          int     `json:"graded"`
	AverageCombined float64 `json:"averageCombined"`
	BestCombined    int     `json:"bestCombined"`
}

// TimelinePoint aggregates submissions created on one calendar day (UTC).
type TimelinePoint struct {
	Date            string  `json:"date"`
	Submissions     int     `json:"submissions"`
	Graded          int     `json:"graded"`
	AverageCombined float64 `json:"averageCombined"`
}

// DashboardResponse is the admin analytics payload.
type DashboardResponse struct {
	TotalSubmissions     int                       `json:"totalSubmissions"`
	GradedSubmissions    int                       `json:"gradedSubmissions"`
	UniqueUsers          int                       `json:"uniqueUsers"`
	AverageRubricScore   float64                   `json:"averageRubricScore"`
	AveragePromptScore   float64                   `json:"averagePromptScore"`
	AverageCombinedScore float64                   `json:"averageCombinedScore"`
	RubricDistribution   []ScoreBucket             `json:"rubricDistribution"`
	PromptDistribution   []ScoreBucket             `json:"promptDistribution"`
	CombinedDistribution []ScoreBucket             `json:"combinedDistribution"`
	Users                []UserRollup              `json:"users"`
	Timeline             []TimelinePoint           `json:"timeline"`
	TopPerformers        []GradedSubmissionSummary `json:"topPerformers"`
	GeneratedAt          time.Time                 `json:"generatedAt"`
	CacheHit             bool                      `json:"cacheHit"`
}

// ExportFile is a rendered CSV download.
type ExportFile struct {
	FileName string
	Content  []byte
}

// StoreStats reports the storage backend and its submission counts.
type StoreStats struct {
	Backend          string `json:"backend"`
	TotalSubmissions int    `json:"totalSubmissions"`
	Graded           int    `json:"graded"`
	Ungraded         int    `json:"ungraded"`
}
