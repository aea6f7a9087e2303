package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestHubSubscribeAndPublish(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil, subscriber{userID: "user-1"})

	hub.Subscribe(UserChannel("user-1"), client)
	hub.Publish(UserChannel("user-1"), []byte(`{"event":"application_status_changed"}`))

	select {
	case msg := <-client.out:
		if string(msg) != `{"event":"application_status_changed"}` {
			t.Fatalf("unexpected payload: %s", string(msg))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for message")
	}

	hub.UnsubscribeAll(client)
}

func TestSubscriptionTopicScopesToSession(t *testing.T) {
	customer := subscriber{userID: "user-1"}
	officer := subscriber{userID: "staff-1", isStaff: true}

	if got := subscriptionTopic(subscribeMessage{Channel: "user:applications"}, customer); got != "user:applications:user-1" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := subscriptionTopic(subscribeMessage{Channel: "admin:applications"}, customer); got != "" {
		t.Fatalf("customer must not follow the staff queue, got %q", got)
	}
	if got := subscriptionTopic(subscribeMessage{Channel: "admin:applications"}, officer); got != staffChannel {
		t.Fatalf("unexpected staff topic %q", got)
	}
	if got := subscriptionTopic(subscribeMessage{Channel: "user:applications"}, subscriber{}); got != "" {
		t.Fatalf("anonymous subscription accepted: %q", got)
	}
}

type realtimeRepoMock struct {
	events   []StatusEvent
	failures int
}

func (m *realtimeRepoMock) ListStatusEventsSince(_ context.Context, lastID int64, _ int32) ([]StatusEvent, error) {
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("connection reset")
	}
	out := []StatusEvent{}
	for _, ev := range m.events {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *realtimeRepoMock) LatestEventID(_ context.Context) (int64, error) { return 0, nil }

func TestNotifierFansOutToOwnerAndStaff(t *testing.T) {
	hub := NewHub()
	owner := NewClient(nil, subscriber{userID: "user-1"})
	other := NewClient(nil, subscriber{userID: "user-2"})
	officer := NewClient(nil, subscriber{userID: "staff-1", isStaff: true})
	hub.Subscribe(UserChannel("user-1"), owner)
	hub.Subscribe(UserChannel("user-2"), other)
	hub.Subscribe(staffChannel, officer)

	repo := &realtimeRepoMock{events: []StatusEvent{{
		ID: 7, ApplicationID: "app-1", ApplicationKind: "loan", UserID: "user-1",
		Action: "approve", PreviousStatus: "pending", NewStatus: "under_review", RecordedAt: time.Now(),
	}}}
	n := NewNotifier(repo, hub, time.Second, nil)
	if err := n.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n.lastID != 7 {
		t.Fatalf("expected cursor to advance, got %d", n.lastID)
	}

	for name, c := range map[string]*Client{"owner": owner, "officer": officer} {
		select {
		case msg := <-c.out:
			var body struct {
				Event string         `json:"event"`
				Data  map[string]any `json:"data"`
			}
			if err := json.Unmarshal(msg, &body); err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if body.Data["new_status"] != "under_review" {
				t.Fatalf("%s: unexpected data %v", name, body.Data)
			}
		default:
			t.Fatalf("%s received nothing", name)
		}
	}
	select {
	case msg := <-other.out:
		t.Fatalf("other customer received %s", msg)
	default:
	}

	if err := n.tick(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	select {
	case msg := <-owner.out:
		t.Fatalf("event delivered twice: %s", msg)
	default:
	}
}

func TestNotifierKeepsPollingAfterFailure(t *testing.T) {
	hub := NewHub()
	owner := NewClient(nil, subscriber{userID: "user-1"})
	hub.Subscribe(UserChannel("user-1"), owner)

	repo := &realtimeRepoMock{failures: 2, events: []StatusEvent{{
		ID: 3, ApplicationID: "app-1", ApplicationKind: "loan", UserID: "user-1",
		Action: "decline", PreviousStatus: "pending", NewStatus: "declined", RecordedAt: time.Now(),
	}}}
	n := NewNotifier(repo, hub, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	select {
	case <-owner.out:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered after transient poll failures")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSlowClientIsDroppedNotBlocked(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil, subscriber{userID: "user-1"})
	hub.Subscribe(UserChannel("user-1"), client)

	for i := 0; i < sendBuffer+5; i++ {
		hub.Publish(UserChannel("user-1"), []byte(`{}`))
	}

	drained := 0
	for range client.out {
		drained++
	}
	if drained != sendBuffer {
		t.Fatalf("expected %d buffered events before drop, got %d", sendBuffer, drained)
	}
	client.close()
}
