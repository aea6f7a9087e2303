package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/lumenmfb/backend/internal/observability"
	"github.com/tidwall/gjson"
)

const (
	topicLoanSubmitted     = "loan_application.submitted"
	topicLoanStatusChanged = "loan_application.status_changed"
	topicAccountReviewed   = "account_application.reviewed"
)

type OutboxJob struct {
	ID          int64
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

// EventPublisher is satisfied by messaging.KafkaPublisher and LogPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, event, key string, payload []byte) error
}

type Worker struct {
	outboxRepo   OutboxRepository
	publisher    EventPublisher
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

func NewWorker(outboxRepo OutboxRepository, publisher EventPublisher) *Worker {
	return &Worker{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	switch job.Topic {
	case topicLoanSubmitted, topicLoanStatusChanged, topicAccountReviewed:
		return w.publishEvent(ctx, job)
	default:
		observability.RecordOutbox(job.Topic, "unsupported")
		if job.Attempts >= w.maxAttempts {
			return w.outboxRepo.MarkFailed(ctx, job.ID, "unsupported_topic")
		}
		next := w.now().Add(w.retryBackoff(job.Attempts))
		return w.outboxRepo.MarkRetry(ctx, job.ID, next, "unsupported_topic")
	}
}

func (w *Worker) publishEvent(ctx context.Context, job OutboxJob) error {
	if !gjson.ValidBytes(job.Payload) {
		return w.handleJobError(ctx, job, errors.New("invalid_payload"))
	}
	key := gjson.GetBytes(job.Payload, "application_id").String()
	if key == "" {
		key = gjson.GetBytes(job.Payload, "account_application_id").String()
	}
	if key == "" {
		return w.handleJobError(ctx, job, errors.New("missing_application_id"))
	}

	if err := w.publisher.Publish(ctx, job.Topic, key, job.Payload); err != nil {
		return w.handleJobError(ctx, job, err)
	}
	observability.RecordOutbox(job.Topic, "published")
	return w.outboxRepo.MarkDone(ctx, job.ID)
}

func (w *Worker) handleJobError(ctx context.Context, job OutboxJob, err error) error {
	msg := err.Error()
	if job.Attempts >= w.maxAttempts {
		observability.RecordOutbox(job.Topic, "failed")
		return w.outboxRepo.MarkFailed(ctx, job.ID, msg)
	}
	observability.RecordOutbox(job.Topic, "retry")
	next := w.now().Add(w.retryBackoff(job.Attempts))
	return w.outboxRepo.MarkRetry(ctx, job.ID, next, msg)
}
