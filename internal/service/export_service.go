package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/rubric-review-api/internal/dto"
	"github.com/noah-isme/rubric-review-api/internal/repository"
)

// ErrUnknownExportType indicates the export type is not users or submissions.
var ErrUnknownExportType = errors.New("unknown export type")

// Export types.
const (
	ExportUsers       = "users"
	ExportSubmissions = "submissions"
)

// ExportService renders CSV downloads for admins.
type ExportService interface {
	Export(ctx context.Context, kind string) (dto.ExportFile, error)
}

type exportService struct {
	store  repository.SubmissionStore
	users  repository.UserStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewExportService constructs the CSV exporter.
func NewExportService(store repository.SubmissionStore, users repository.UserStore, logger zerolog.Logger) ExportService {
	return &exportService{
		store:  store,
		users:  users,
		logger: logger.With().Str("component", "export_service").Logger(),
		now:    time.Now,
	}
}

func (s *exportService) Export(ctx context.Context, kind string) (dto.ExportFile, error) {
	tracer := otel.Tracer("github.com/noah-isme/rubric-review-api/internal/service/export")
	ctx, span := tracer.Start(ctx, "export.render")
	span.SetAttributes(attribute.String("export.type", kind))
	defer span.End()

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case ExportUsers:
		rows, err = s.userRows(ctx)
	case ExportSubmissions:
		rows, err = s.submissionRows(ctx)
	default:
		span.SetStatus(codes.Error, "unknown_type")
		return dto.ExportFile{}, fmt.Errorf("%w: %q", ErrUnknownExportType, kind)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.ExportFile{}, err
	}

	var buf bytes.Buffer
	for _, row := range rows {
		writeCSVRow(&buf, row)
	}
	span.SetAttributes(attribute.Int("export.rows", len(rows)-1))

	return dto.ExportFile{
		FileName: fmt.Sprintf("%s-%s.csv", strings.ToLower(kind), s.now().UTC().Format("20060102-150405")),
		Content:  buf.Bytes(),
	}, nil
}

func (s *exportService) userRows(ctx context.Context) ([][]string, error) {
	stats, err := s.users.ListWithStats(ctx)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"email", "full_name", "submission_count", "first_seen", "last_submission"}}
	for _, stat := range stats {
		rows = append(rows, []string{
			stat.Email,
			stat.FullName,
			strconv.FormatInt(stat.SubmissionCount, 10),
			formatTime(stat.FirstSeen),
			formatTime(stat.LastSubmission),
		})
	}
	return rows, nil
}

func (s *exportService) submissionRows(ctx context.Context) ([][]string, error) {
	submissions, err := s.store.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{
		"id", "email", "full_name", "prompt",
		"original_count", "final_count", "added_count", "edited_count", "deleted_count",
		"rubric_score", "prompt_score", "combined_score", "grade", "graded_at", "created_at",
	}}
	for _, submission := range submissions {
		row := []string{
			submission.ID,
			submission.Email,
			submission.FullName,
			submission.Prompt,
			strconv.Itoa(submission.OriginalCount),
			strconv.Itoa(submission.FinalCount),
			strconv.Itoa(submission.AddedCount),
			strconv.Itoa(submission.EditedCount),
			strconv.Itoa(submission.DeletedCount),
		}

		grading, err := submission.Grading()
		if err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("exporting submission without grading")
		}
		if grading == nil {
			row = append(row, "", "", "", "", "")
		} else {
			prompt := ""
			if grading.PromptGrade != nil {
				prompt = formatScore(grading.PromptGrade.Score)
			}
			row = append(row,
				formatScore(grading.Score),
				prompt,
				strconv.Itoa(grading.CombinedScore()),
				grading.Grade,
				formatTime(grading.GradedAt),
			)
		}
		row = append(row, formatTime(submission.CreatedAt))
		rows = append(rows, row)
	}
	return rows, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// csvField quotes value only when it holds a comma, a double quote, CR or LF.
func csvField(value string) string {
	if !strings.ContainsAny(value, ",\"\r\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func writeCSVRow(buf *bytes.Buffer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(csvField(field))
	}
	buf.WriteString("\r\n")
}
