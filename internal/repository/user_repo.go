package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

// NewUserRepository constructs the GORM-backed user registry.
func NewUserRepository(db *gorm.DB) UserStore {
	return &userRepository{db: db}
}

type userRepository struct {
	db *gorm.DB
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Upsert(ctx context.Context, email, fullName string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where(models.User{Email: normalizeEmail(email)}).
		Attrs(models.User{FullName: strings.TrimSpace(fullName)}).
		FirstOrCreate(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ListWithStats(ctx context.Context) ([]models.UserStats, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("email ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	type submissionRow struct {
		Email     string
		CreatedAt time.Time
	}
	var rows []submissionRow
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).Select("email, created_at").Scan(&rows).Error; err != nil {
		return nil, err
	}

	index := make(map[string]*models.UserStats, len(users))
	stats := make([]models.UserStats, 0, len(users))
	for _, user := range users {
		stats = append(stats, models.UserStats{Email: user.Email, FullName: user.FullName, FirstSeen: user.CreatedAt})
	}
	for i := range stats {
		index[stats[i].Email] = &stats[i]
	}
	for _, row := range rows {
		entry, ok := index[normalizeEmail(row.Email)]
		if !ok {
			continue
		}
		entry.SubmissionCount++
		if row.CreatedAt.After(entry.LastSubmission) {
			entry.LastSubmission = row.CreatedAt
		}
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Email < stats[j].Email })
	return stats, nil
}
