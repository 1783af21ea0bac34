package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

// NewSubmissionRepository constructs the GORM-backed submission store.
func NewSubmissionRepository(db *gorm.DB) SubmissionStore {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Backend() string {
	return r.db.Dialector.Name()
}

func (r *submissionRepository) AddSubmission(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(submission).Error; err != nil {
			return fmt.Errorf("create submission: %w", err)
		}
		if len(submission.Criteria) > 0 {
			if err := tx.Create(&submission.Criteria).Error; err != nil {
				return fmt.Errorf("create criteria: %w", err)
			}
		}
		if len(submission.Actions) > 0 {
			if err := tx.Create(&submission.Actions).Error; err != nil {
				return fmt.Errorf("create actions: %w", err)
			}
		}
		return nil
	})
}

func (r *submissionRepository) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Actions", func(db *gorm.DB) *gorm.DB { return db.Order("occurred_at ASC") }).
		First(&submission, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) ListSubmissions(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) UpdateSubmission(ctx context.Context, submission *models.Submission) error {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Updates(map[string]interface{}{
			"grading_result": submission.GradingResult,
			"graded_at":      submission.GradedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func (r *submissionRepository) ListDashboardSubmissions(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("grading_result IS NOT NULL").
		Order("created_at ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) ListUngraded(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("grading_result IS NULL").
		Order("created_at ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}
