package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

// Migrate creates or updates the tables backing the relational store.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Submission{}, &models.Criterion{}, &models.CriterionAction{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
