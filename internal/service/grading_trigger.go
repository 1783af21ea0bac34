package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubric-review-api/internal/observability"
)

// GradingTrigger requests background grading for a freshly stored submission.
// Delivery is best-effort and at most once; there is no retry.
type GradingTrigger interface {
	Trigger(ctx context.Context, submissionID string) error
}

type gradingRequest struct {
	SubmissionID string    `json:"submissionId"`
	RequestedAt  time.Time `json:"requestedAt"`
}

// AsyncGradingTrigger grades in a detached goroutine of the same process.
type AsyncGradingTrigger struct {
	grading GradingService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewAsyncGradingTrigger constructs the in-process trigger. Each grading run is
// bounded by timeout when it is positive.
func NewAsyncGradingTrigger(grading GradingService, timeout time.Duration, logger zerolog.Logger) *AsyncGradingTrigger {
	return &AsyncGradingTrigger{
		grading: grading,
		timeout: timeout,
		logger:  logger.With().Str("component", "grading_trigger").Str("transport", "goroutine").Logger(),
	}
}

// Trigger starts grading and returns immediately.
func (t *AsyncGradingTrigger) Trigger(_ context.Context, submissionID string) error {
	observability.GradingTriggers().WithLabelValues("goroutine", "sent").Inc()
	go t.run(submissionID)
	return nil
}

func (t *AsyncGradingTrigger) run(submissionID string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("submission_id", submissionID).Msg("background grading panicked")
		}
	}()

	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if _, err := t.grading.Grade(ctx, submissionID, GradeOptions{}); err != nil {
		t.logger.Error().Err(err).Str("submission_id", submissionID).Msg("background grading failed")
		return
	}
	t.logger.Debug().Str("submission_id", submissionID).Msg("background grading finished")
}

// NATSGradingTrigger publishes grading requests on a NATS subject.
type NATSGradingTrigger struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSGradingTrigger constructs a publisher for subject.
func NewNATSGradingTrigger(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSGradingTrigger {
	return &NATSGradingTrigger{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "grading_trigger").Str("transport", "nats").Logger(),
	}
}

// Trigger publishes the request without waiting for a consumer.
func (t *NATSGradingTrigger) Trigger(_ context.Context, submissionID string) error {
	payload, err := json.Marshal(gradingRequest{SubmissionID: submissionID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := t.conn.Publish(t.subject, payload); err != nil {
		observability.GradingTriggers().WithLabelValues("nats", "failed").Inc()
		return fmt.Errorf("publish grading request: %w", err)
	}
	observability.GradingTriggers().WithLabelValues("nats", "sent").Inc()
	return nil
}

// GradingWorker consumes grading requests from NATS.
type GradingWorker struct {
	conn    *nats.Conn
	subject string
	queue   string
	grading GradingService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGradingWorker constructs a queue subscriber. Workers sharing queue split
// the requests between them.
func NewGradingWorker(conn *nats.Conn, subject, queue string, grading GradingService, timeout time.Duration, logger zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		conn:    conn,
		subject: subject,
		queue:   queue,
		grading: grading,
		timeout: timeout,
		logger:  logger.With().Str("component", "grading_worker").Logger(),
	}
}

// Start subscribes and drains the subscription when ctx ends.
func (w *GradingWorker) Start(ctx context.Context) error {
	sub, err := w.conn.QueueSubscribe(w.subject, w.queue, func(msg *nats.Msg) {
		w.handle(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", w.subject, err)
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			w.logger.Warn().Err(err).Msg("failed to drain grading subscription")
		}
	}()
	w.logger.Info().Str("subject", w.subject).Str("queue", w.queue).Msg("grading worker subscribed")
	return nil
}

func (w *GradingWorker) handle(parent context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("grading worker panicked")
		}
	}()

	var request gradingRequest
	if err := json.Unmarshal(data, &request); err != nil || request.SubmissionID == "" {
		w.logger.Warn().Err(err).Msg("invalid grading request")
		observability.GradingTriggers().WithLabelValues("nats", "invalid").Inc()
		return
	}

	ctx := parent
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, w.timeout)
		defer cancel()
	}

	if _, err := w.grading.Grade(ctx, request.SubmissionID, GradeOptions{}); err != nil {
		w.logger.Error().Err(err).Str("submission_id", request.SubmissionID).Msg("queued grading failed")
		return
	}
	observability.GradingTriggers().WithLabelValues("nats", "handled").Inc()
}
