package repository

import (
	"context"
	"errors"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

var (
	// ErrSubmissionNotFound indicates no submission matches the identifier.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrUserNotFound indicates no user matches the email.
	ErrUserNotFound = errors.New("user not found")
)

// SubmissionStore is the capability set every persistence backend provides.
type SubmissionStore interface {
	// AddSubmission persists the submission with its criteria and actions atomically.
	AddSubmission(ctx context.Context, submission *models.Submission) error
	// GetSubmission loads a submission with criteria and actions.
	GetSubmission(ctx context.Context, id string) (models.Submission, error)
	// ListSubmissions returns submissions without criteria or actions, newest first.
	ListSubmissions(ctx context.Context) ([]models.Submission, error)
	// UpdateSubmission stores the grading fields of the submission.
	UpdateSubmission(ctx context.Context, submission *models.Submission) error
	// ListDashboardSubmissions returns graded submissions, oldest first.
	ListDashboardSubmissions(ctx context.Context) ([]models.Submission, error)
	// ListUngraded returns submissions without a grading result, oldest first.
	ListUngraded(ctx context.Context) ([]models.Submission, error)
	// Backend names the storage engine.
	Backend() string
}

// UserStore persists the email to name registry.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Upsert(ctx context.Context, email, fullName string) (models.User, error)
	ListWithStats(ctx context.Context) ([]models.UserStats, error)
}
