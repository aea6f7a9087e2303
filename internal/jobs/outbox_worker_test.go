package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenmfb/backend/internal/jobs"
)

type fakeOutboxRepo struct {
	jobs      []jobs.OutboxJob
	doneIDs   []int64
	retryIDs  []int64
	failedIDs []int64
}

func (r *fakeOutboxRepo) ClaimPending(_ context.Context, _ int32) ([]jobs.OutboxJob, error) {
	return r.jobs, nil
}

func (r *fakeOutboxRepo) MarkDone(_ context.Context, jobID int64) error {
	r.doneIDs = append(r.doneIDs, jobID)
	return nil
}

func (r *fakeOutboxRepo) MarkRetry(_ context.Context, jobID int64, _ time.Time, _ string) error {
	r.retryIDs = append(r.retryIDs, jobID)
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, jobID int64, _ string) error {
	r.failedIDs = append(r.failedIDs, jobID)
	return nil
}

type published struct {
	event, key string
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, event, key string, _ []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{event: event, key: key})
	return nil
}

func TestWorkerPublishesApplicationEvents(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{
		{ID: 1, Topic: "loan_application.submitted", Attempts: 1, Payload: []byte(`{"application_id":"app-1"}`)},
		{ID: 2, Topic: "account_application.reviewed", Attempts: 1, Payload: []byte(`{"account_application_id":"acct-1"}`)},
	}}
	pub := &fakePublisher{}
	worker := jobs.NewWorker(outbox, pub)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.doneIDs) != 2 {
		t.Fatalf("expected both jobs marked done, got %v", outbox.doneIDs)
	}
	if len(pub.sent) != 2 || pub.sent[0].key != "app-1" || pub.sent[1].key != "acct-1" {
		t.Fatalf("unexpected publications: %+v", pub.sent)
	}
}

func TestWorkerRetriesOnPublishError(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{{ID: 1, Topic: "loan_application.status_changed", Attempts: 1, Payload: []byte(`{"application_id":"app-1"}`)}}}
	worker := jobs.NewWorker(outbox, &fakePublisher{err: errors.New("broker down")})

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.retryIDs) != 1 {
		t.Fatalf("expected retry, got done=%v failed=%v", outbox.doneIDs, outbox.failedIDs)
	}
}

func TestWorkerFailsAfterMaxAttempts(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{
		{ID: 1, Topic: "loan_application.status_changed", Attempts: 5, Payload: []byte(`not json`)},
		{ID: 2, Topic: "unknown_topic", Attempts: 5, Payload: []byte(`{}`)},
	}}
	worker := jobs.NewWorker(outbox, &fakePublisher{})

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.failedIDs) != 2 {
		t.Fatalf("expected both jobs failed, got %v", outbox.failedIDs)
	}
}
