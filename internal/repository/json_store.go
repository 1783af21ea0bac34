package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/rubric-review-api/internal/models"
)

// BackendJSONFile names the flat-file storage engine.
const BackendJSONFile = "jsonfile"

// JSONStore keeps every submission in one JSON array on disk. Each write
// rewrites the whole file through a temp file and rename.
type JSONStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewJSONStore opens or creates the JSON array file at path.
func NewJSONStore(path string) (*JSONStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("json store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create json store directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("initialise json store: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return &JSONStore{path: path, now: time.Now}, nil
}

// Backend reports the storage engine name.
func (s *JSONStore) Backend() string {
	return BackendJSONFile
}

func (s *JSONStore) load() ([]models.Submission, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read json store: %w", err)
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return []models.Submission{}, nil
	}
	var submissions []models.Submission
	if err := json.Unmarshal(payload, &submissions); err != nil {
		return nil, fmt.Errorf("decode json store: %w", err)
	}
	return submissions, nil
}

func (s *JSONStore) save(submissions []models.Submission) error {
	payload, err := json.MarshalIndent(submissions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".submissions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace json store: %w", err)
	}
	return nil
}

func (s *JSONStore) AddSubmission(ctx context.Context, submission *models.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	submissions, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range submissions {
		if existing.ID == submission.ID {
			return fmt.Errorf("submission %s already exists", submission.ID)
		}
	}

	now := s.now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	for i := range submission.Criteria {
		if submission.Criteria[i].CreatedAt.IsZero() {
			submission.Criteria[i].CreatedAt = submission.CreatedAt
		}
	}

	submissions = append(submissions, *submission)
	return s.save(submissions)
}

func (s *JSONStore) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return models.Submission{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	submissions, err := s.load()
	if err != nil {
		return models.Submission{}, err
	}
	for _, submission := range submissions {
		if submission.ID == id {
			sort.SliceStable(submission.Criteria, func(i, j int) bool {
				return submission.Criteria[i].Order < submission.Criteria[j].Order
			})
			sort.SliceStable(submission.Actions, func(i, j int) bool {
				return submission.Actions[i].Timestamp.Before(submission.Actions[j].Timestamp)
			})
			return submission, nil
		}
	}
	return models.Submission{}, ErrSubmissionNotFound
}

func (s *JSONStore) ListSubmissions(ctx context.Context) ([]models.Submission, error) {
	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *JSONStore) UpdateSubmission(ctx context.Context, submission *models.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	submissions, err := s.load()
	if err != nil {
		return err
	}
	for i := range submissions {
		if submissions[i].ID != submission.ID {
			continue
		}
		submissions[i].GradingResult = submission.GradingResult
		submissions[i].GradedAt = submission.GradedAt
		submissions[i].UpdatedAt = s.now().UTC()
		return s.save(submissions)
	}
	return ErrSubmissionNotFound
}

func (s *JSONStore) ListDashboardSubmissions(ctx context.Context) ([]models.Submission, error) {
	list, err := s.filtered(ctx, models.Submission.IsGraded)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *JSONStore) ListUngraded(ctx context.Context) ([]models.Submission, error) {
	list, err := s.filtered(ctx, func(m models.Submission) bool { return !m.IsGraded() })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// filtered returns matching submissions stripped of criteria and actions.
func (s *JSONStore) filtered(ctx context.Context, keep func(models.Submission) bool) ([]models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	submissions, err := s.load()
	if err != nil {
		return nil, err
	}
	result := make([]models.Submission, 0, len(submissions))
	for _, submission := range submissions {
		if !keep(submission) {
			continue
		}
		submission.Criteria = nil
		submission.Actions = nil
		result = append(result, submission)
	}
	return result, nil
}

// Users returns the UserStore view derived from stored submissions.
func (s *JSONStore) Users() UserStore {
	return &jsonUserStore{store: s}
}

type jsonUserStore struct {
	store *JSONStore
}

func (u *jsonUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	submissions, err := u.store.all(ctx)
	if err != nil {
		return models.User{}, err
	}
	target := normalizeEmail(email)
	var (
		found bool
		user  models.User
	)
	for _, submission := range submissions {
		if normalizeEmail(submission.Email) != target {
			continue
		}
		if !found || submission.CreatedAt.Before(user.CreatedAt) {
			user = models.User{Email: target, FullName: submission.FullName, CreatedAt: submission.CreatedAt, UpdatedAt: submission.CreatedAt}
			found = true
		}
	}
	if !found {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

// Upsert returns the derived user. Users without submissions are not persisted
// by this backend; their first submission registers them.
func (u *jsonUserStore) Upsert(ctx context.Context, email, fullName string) (models.User, error) {
	user, err := u.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}
	now := u.store.now().UTC()
	return models.User{Email: normalizeEmail(email), FullName: strings.TrimSpace(fullName), CreatedAt: now, UpdatedAt: now}, nil
}

func (u *jsonUserStore) ListWithStats(ctx context.Context) ([]models.UserStats, error) {
	submissions, err := u.store.all(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]*models.UserStats)
	for _, submission := range submissions {
		email := normalizeEmail(submission.Email)
		entry, ok := index[email]
		if !ok {
			entry = &models.UserStats{Email: email, FullName: submission.FullName, FirstSeen: submission.CreatedAt}
			index[email] = entry
		}
		entry.SubmissionCount++
		if submission.CreatedAt.Before(entry.FirstSeen) {
			entry.FirstSeen = submission.CreatedAt
			entry.FullName = submission.FullName
		}
		if submission.CreatedAt.After(entry.LastSubmission) {
			entry.LastSubmission = submission.CreatedAt
		}
	}

	stats := make([]models.UserStats, 0, len(index))
	for _, entry := range index {
		stats = append(stats, *entry)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Email < stats[j].Email })
	return stats, nil
}

func (s *JSONStore) all(ctx context.Context) ([]models.Submission, error) {
	return s.filtered(ctx, func(models.Submission) bool { return true })
}
