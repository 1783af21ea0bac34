package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/models"
	"github.com/noah-isme/rubric-review-api/internal/repository"
)

const dashboardCacheKey = "dashboard:summary"

// DashboardService aggregates analytics for the admin dashboard.
type DashboardService interface {
	Summary(ctx context.Context) (dto.DashboardResponse, error)
	Invalidate(ctx context.Context)
}

type dashboardService struct {
	store    repository.SubmissionStore
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDashboardService constructs the analytics service. cache may be nil.
func NewDashboardService(store repository.SubmissionStore, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		store:    store,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "dashboard_service").Logger(),
		now:      time.Now,
	}
}

func (s *dashboardService) Summary(ctx context.Context) (dto.DashboardResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/rubric-review-api/internal/service/dashboard")
	ctx, span := tracer.Start(ctx, "dashboard.aggregate")
	span.SetAttributes(attribute.String("dashboard.cache_key", dashboardCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, dashboardCacheKey).Result()
		if err == nil {
			var response dto.DashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("dashboard.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
			span.RecordError(err)
		}
	}

	all, err := s.store.ListSubmissions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_submissions_failed")
		return dto.DashboardResponse{}, err
	}
	graded, err := s.store.ListDashboardSubmissions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_graded_failed")
		return dto.DashboardResponse{}, err
	}

	summary := s.buildSummary(all, graded)
	span.SetAttributes(
		attribute.Int("dashboard.submissions", summary.TotalSubmissions),
		attribute.Int("dashboard.graded", summary.GradedSubmissions),
	)

	if s.cache != nil && s.cacheTTL > 0 {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

// Invalidate drops the cached summary so the next read recomputes it.
func (s *dashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, dashboardCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

type gradedEntry struct {
	submission models.Submission
	grading    *models.GradingResult
}

func (s *dashboardService) buildSummary(all, graded []models.Submission) dto.DashboardResponse {
	entries := make([]gradedEntry, 0, len(graded))
	for _, submission := range graded {
		grading, err := submission.Grading()
		if err != nil || grading == nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("skipping unreadable grading result")
			continue
		}
		entries = append(entries, gradedEntry{submission: submission, grading: grading})
	}

	rubricBuckets := newScoreBuckets()
	promptBuckets := newScoreBuckets()
	combinedBuckets := newScoreBuckets()

	var rubricTotal, promptTotal, combinedTotal float64
	promptCount := 0
	for _, entry := range entries {
		rubricBuckets[bucketIndex(entry.grading.Score)].Count++
		rubricTotal += entry.grading.Score
		combined := entry.grading.CombinedScore()
		combinedBuckets[bucketIndex(float64(combined))].Count++
		combinedTotal += float64(combined)
		if entry.grading.PromptGrade != nil {
			promptBuckets[bucketIndex(entry.grading.PromptGrade.Score)].Count++
			promptTotal += entry.grading.PromptGrade.Score
			promptCount++
		}
	}

	return dto.DashboardResponse{
		TotalSubmissions:     len(all),
		GradedSubmissions:    len(entries),
		UniqueUsers:          countUniqueEmails(all),
		AverageRubricScore:   average(rubricTotal, len(entries)),
		AveragePromptScore:   average(promptTotal, promptCount),
		AverageCombinedScore: average(combinedTotal, len(entries)),
		RubricDistribution:   rubricBuckets,
		PromptDistribution:   promptBuckets,
		CombinedDistribution: combinedBuckets,
		Users:                userRollups(all, entries),
		Timeline:             timeline(all, entries),
		TopPerformers:        topPerformers(entries),
		GeneratedAt:          s.now().UTC(),
	}
}

func newScoreBuckets() []dto.ScoreBucket {
	buckets := make([]dto.ScoreBucket, 10)
	for i := range buckets {
		lower := i * 10
		upper := lower + 9
		if i == len(buckets)-1 {
			upper = 100
		}
		buckets[i] = dto.ScoreBucket{Range: fmt.Sprintf("%d-%d", lower, upper), Min: lower, Max: upper}
	}
	return buckets
}

// bucketIndex maps a score in [0,100] to one of ten buckets; 100 joins 90-100.
func bucketIndex(score float64) int {
	index := int(math.Floor(models.ClampScore(score) / 10))
	if index > 9 {
		index = 9
	}
	return index
}

func average(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(total/float64(count)*100) / 100
}

func countUniqueEmails(submissions []models.Submission) int {
	seen := make(map[string]struct{}, len(submissions))
	for _, submission := range submissions {
		seen[strings.ToLower(submission.Email)] = struct{}{}
	}
	return len(seen)
}

func userRollups(all []models.Submission, entries []gradedEntry) []dto.UserRollup {
	index := make(map[string]*dto.UserRollup)
	totals := make(map[string]float64)
	for _, submission := range all {
		email := strings.ToLower(submission.Email)
		rollup, ok := index[email]
		if !ok {
			rollup = &dto.UserRollup{Email: email, FullName: submission.FullName}
			index[email] = rollup
		}
		rollup.Submissions++
	}
	for _, entry := range entries {
		email := strings.ToLower(entry.submission.Email)
		rollup, ok := index[email]
		if !ok {
			rollup = &dto.UserRollup{Email: email, FullName: entry.submission.FullName, Submissions: 1}
			index[email] = rollup
		}
		combined := entry.grading.CombinedScore()
		rollup.Graded++
		totals[email] += float64(combined)
		if rollup.Graded == 1 || combined > rollup.BestCombined {
			rollup.BestCombined = combined
		}
	}

	rollups := make([]dto.UserRollup, 0, len(index))
	for email, rollup := range index {
		rollup.AverageCombined = average(totals[email], rollup.Graded)
		rollups = append(rollups, *rollup)
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].Email < rollups[j].Email })
	return rollups
}

func timeline(all []models.Submission, entries []gradedEntry) []dto.TimelinePoint {
	points := make(map[string]*dto.TimelinePoint)
	totals := make(map[string]float64)
	point := func(at time.Time) *dto.TimelinePoint {
		day := at.UTC().Format("2006-01-02")
		p, ok := points[day]
		if !ok {
			p = &dto.TimelinePoint{Date: day}
			points[day] = p
		}
		return p
	}

	for _, submission := range all {
		point(submission.CreatedAt).Submissions++
	}
	for _, entry := range entries {
		p := point(entry.submission.CreatedAt)
		p.Graded++
		totals[p.Date] += float64(entry.grading.CombinedScore())
	}

	result := make([]dto.TimelinePoint, 0, len(points))
	for day, p := range points {
		p.AverageCombined = average(totals[day], p.Graded)
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}

// topPerformers returns the top decile by combined score, at least one entry
// when anything is graded.
func topPerformers(entries []gradedEntry) []dto.GradedSubmissionSummary {
	if len(entries) == 0 {
		return []dto.GradedSubmissionSummary{}
	}
	summaries := make([]dto.GradedSubmissionSummary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, dto.NewGradedSubmissionSummary(entry.submission, entry.grading))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].CombinedScore != summaries[j].CombinedScore {
			return summaries[i].CombinedScore > summaries[j].CombinedScore
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	limit := int(math.Ceil(float64(len(summaries)) / 10))
	if limit < 1 {
		limit = 1
	}
	return summaries[:limit]
}

type invalidatingStore struct {
	repository.SubmissionStore
	dashboard DashboardService
}

// InvalidateOnWrite wraps store so every successful submission write, from a
// request or a background grader, drops the cached dashboard summary.
func InvalidateOnWrite(store repository.SubmissionStore, dashboard DashboardService) repository.SubmissionStore {
	if dashboard == nil {
		return store
	}
	return &invalidatingStore{SubmissionStore: store, dashboard: dashboard}
}

func (s *invalidatingStore) AddSubmission(ctx context.Context, submission *models.Submission) error {
	if err := s.SubmissionStore.AddSubmission(ctx, submission); err != nil {
		return err
	}
	s.dashboard.Invalidate(ctx)
	return nil
}

func (s *invalidatingStore) UpdateSubmission(ctx context.Context, submission *models.Submission) error {
	if err := s.SubmissionStore.UpdateSubmission(ctx, submission); err != nil {
		return err
	}
	s.dashboard.Invalidate(ctx)
	return nil
}
