package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	userChannelPrefix = "user:applications:"
	staffChannel      = "admin:applications"
)

// StatusEvent is one approval-chain or account review decision, read back
// from the audit trail.
type StatusEvent struct {
	ID              int64
	ApplicationID   string
	ApplicationKind string
	UserID          string
	Action          string
	PreviousStatus  string
	NewStatus       string
	RecordedAt      time.Time
}

type RealtimeRepository interface {
	ListStatusEventsSince(ctx context.Context, lastID int64, limit int32) ([]StatusEvent, error)
	LatestEventID(ctx context.Context) (int64, error)
}

type Notifier struct {
	repo         RealtimeRepository
	hub          *Hub
	pollInterval time.Duration
	logger       *slog.Logger
	lastID       int64
}

func NewNotifier(repo RealtimeRepository, hub *Hub, pollInterval time.Duration, logger *slog.Logger) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{repo: repo, hub: hub, pollInterval: pollInterval, logger: logger}
}

func UserChannel(userID string) string { return userChannelPrefix + userID }

// Run polls until ctx ends. A failed poll is logged and retried on the next
// tick; lastID only advances past delivered events, so nothing is skipped.
func (n *Notifier) Run(ctx context.Context) error {
	last, err := n.repo.LatestEventID(ctx)
	if err != nil {
		return err
	}
	n.lastID = last

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil && ctx.Err() == nil {
				n.logger.Warn("status event poll failed", "err", err)
			}
		}
	}
}

func (n *Notifier) tick(ctx context.Context) error {
	events, err := n.repo.ListStatusEventsSince(ctx, n.lastID, 100)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.ID > n.lastID {
			n.lastID = ev.ID
		}
		userCh := UserChannel(ev.UserID)
		if !n.hub.HasSubscribers(userCh) && !n.hub.HasSubscribers(staffChannel) {
			continue
		}
		payload, _ := json.Marshal(map[string]any{
			"event": "application_status_changed",
			"data": map[string]any{
				"application_id":   ev.ApplicationID,
				"application_kind": ev.ApplicationKind,
				"action":           ev.Action,
				"previous_status":  ev.PreviousStatus,
				"new_status":       ev.NewStatus,
				"recorded_at":      ev.RecordedAt.UTC().Format(time.RFC3339),
			},
		})
		if ev.UserID != "" {
			n.hub.Publish(userCh, payload)
		}
		n.hub.Publish(staffChannel, payload)
	}
	return nil
}
