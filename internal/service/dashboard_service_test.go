package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rubric-review-api/internal/models"
	"github.com/noah-isme/rubric-review-api/internal/repository"
)

func gradeStored(t *testing.T, store repository.SubmissionStore, id string, rubricScore float64, promptScore *float64) {
	t.Helper()
	submission, err := store.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	result := &models.GradingResult{GradeReport: models.GradeReport{Score: rubricScore}, GradedAt: time.Now().UTC()}
	if promptScore != nil {
		result.PromptGrade = &models.GradeReport{Score: *promptScore}
	}
	require.NoError(t, submission.SetGrading(result))
	require.NoError(t, store.UpdateSubmission(context.Background(), &submission))
}

func score(v float64) *float64 { return &v }

func TestDashboardCombinedScoreAndDistributions(t *testing.T) {
	store := setupJSONStore(t)
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	seedSubmission(t, store, "s1", day)
	seedSubmission(t, store, "s2", day.Add(time.Hour))
	seedSubmission(t, store, "s3", day.Add(24*time.Hour))
	gradeStored(t, store, "s1", 80, score(60))
	gradeStored(t, store, "s2", 100, nil)

	svc := NewDashboardService(store, nil, time.Minute, testLogger())
	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, summary.TotalSubmissions)
	require.Equal(t, 2, summary.GradedSubmissions)
	require.Equal(t, 1, summary.UniqueUsers)
	require.Equal(t, 90.0, summary.AverageRubricScore)
	require.Equal(t, 60.0, summary.AveragePromptScore)
	require.Equal(t, 85.0, summary.AverageCombinedScore)

	require.Len(t, summary.RubricDistribution, 10)
	require.Equal(t, "0-9", summary.RubricDistribution[0].Range)
	require.Equal(t, "90-100", summary.RubricDistribution[9].Range)
	require.Equal(t, 1, summary.RubricDistribution[8].Count)
	require.Equal(t, 1, summary.RubricDistribution[9].Count, "100 lands in the last bucket")
	require.Equal(t, 1, summary.PromptDistribution[6].Count)
	require.Equal(t, 1, summary.CombinedDistribution[7].Count, "80 and 60 combine to 70")

	require.Len(t, summary.Users, 1)
	require.Equal(t, 3, summary.Users[0].Submissions)
	require.Equal(t, 2, summary.Users[0].Graded)
	require.Equal(t, 100, summary.Users[0].BestCombined)

	require.Len(t, summary.Timeline, 2)
	require.Equal(t, "2024-05-01", summary.Timeline[0].Date)
	require.Equal(t, 2, summary.Timeline[0].Submissions)
	require.Equal(t, 2, summary.Timeline[0].Graded)
	require.Equal(t, 1, summary.Timeline[1].Submissions)
	require.Zero(t, summary.Timeline[1].Graded)

	require.Len(t, summary.TopPerformers, 1)
	require.Equal(t, "s2", summary.TopPerformers[0].ID)
}

func TestDashboardTopDecile(t *testing.T) {
	store := setupJSONStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 11; i++ {
		id := fmt.Sprintf("s%02d", i)
		seedSubmission(t, store, id, base.Add(time.Duration(i)*time.Second))
		gradeStored(t, store, id, float64(50+i*4), nil)
	}

	summary, err := NewDashboardService(store, nil, 0, testLogger()).Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.TopPerformers, 2)
	require.Equal(t, "s10", summary.TopPerformers[0].ID)
	require.Equal(t, 90, summary.TopPerformers[0].CombinedScore)
	require.Equal(t, "s09", summary.TopPerformers[1].ID)
}

func TestDashboardEmpty(t *testing.T) {
	summary, err := NewDashboardService(setupJSONStore(t), nil, 0, testLogger()).Summary(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.TotalSubmissions)
	require.Zero(t, summary.AverageCombinedScore)
	require.Empty(t, summary.TopPerformers)
	require.Len(t, summary.CombinedDistribution, 10)
}

func TestDashboardCaching(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	store := setupJSONStore(t)
	seedSubmission(t, store, "s1", time.Now())
	gradeStored(t, store, "s1", 80, score(60))

	svc := NewDashboardService(store, client, time.Minute, testLogger())
	first, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.True(t, server.Exists(dashboardCacheKey))

	seedSubmission(t, store, "s2", time.Now())
	cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, 1, cached.TotalSubmissions)

	svc.Invalidate(context.Background())
	require.False(t, server.Exists(dashboardCacheKey))

	fresh, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, 2, fresh.TotalSubmissions)
}

func TestDashboardRefreshesAfterBackgroundGrading(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := setupJSONStore(t)
	dashboard := NewDashboardService(base, client, time.Hour, testLogger())
	store := InvalidateOnWrite(base, dashboard)

	cached, err := dashboard.Summary(context.Background())
	require.NoError(t, err)
	require.Zero(t, cached.TotalSubmissions)
	require.True(t, server.Exists(dashboardCacheKey))

	seedSubmission(t, store, "s1", time.Now())
	require.False(t, server.Exists(dashboardCacheKey), "a new submission drops the cached summary")

	afterSubmit, err := dashboard.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, afterSubmit.TotalSubmissions)
	require.Zero(t, afterSubmit.GradedSubmissions)

	llm := &stubLLM{respond: gradingResponder(`{"score": 80}`, `{"score": 60}`, improvementsJSON)}
	grading := NewGradingService(store, llm, GradingConfig{}, testLogger())
	require.NoError(t, NewAsyncGradingTrigger(grading, time.Minute, testLogger()).Trigger(context.Background(), "s1"))

	require.Eventually(t, func() bool {
		return !server.Exists(dashboardCacheKey)
	}, 2*time.Second, 10*time.Millisecond, "grading result write drops the cached summary")

	fresh, err := dashboard.Summary(context.Background())
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Equal(t, 1, fresh.GradedSubmissions)
	require.Equal(t, 70.0, fresh.AverageCombinedScore)
}

func TestInvalidateOnWriteSkipsFailedWrites(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := setupJSONStore(t)
	dashboard := NewDashboardService(base, client, time.Hour, testLogger())
	store := InvalidateOnWrite(base, dashboard)

	_, err := dashboard.Summary(context.Background())
	require.NoError(t, err)

	missing := models.Submission{ID: "missing"}
	require.ErrorIs(t, store.UpdateSubmission(context.Background(), &missing), repository.ErrSubmissionNotFound)
	require.True(t, server.Exists(dashboardCacheKey))
}
