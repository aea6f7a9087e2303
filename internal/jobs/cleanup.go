package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumenmfb/backend/internal/domain/admin"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/observability"
)

type CleanupRepository interface {
	CleanupCandidates(ctx context.Context, cutoff time.Time) ([]string, error)
	MarkUploadsRemoved(ctx context.Context, userID string, at time.Time) error
}

type SettingsReader interface {
	Settings(ctx context.Context) (admin.Settings, error)
}

// FileRemover deletes everything a user has uploaded, bucket by bucket.
type FileRemover interface {
	RemoveAll(ctx context.Context, userID string) (map[document.Bucket]int, []error)
}

type CleanupReport struct {
	Skipped        bool           `json:"skipped"`
	RetentionDays  int32          `json:"retention_days"`
	Cutoff         time.Time      `json:"cutoff"`
	UsersProcessed int            `json:"users_processed"`
	ObjectsDeleted map[string]int `json:"objects_deleted"`
	Errors         []string       `json:"errors,omitempty"`
}

// Cleanup removes the uploads of customers whose applications were all
// declined longer ago than the retention window. Database rows are kept.
type Cleanup struct {
	repo     CleanupRepository
	settings SettingsReader
	files    FileRemover
	logger   *slog.Logger
	now      func() time.Time
}

func NewCleanup(repo CleanupRepository, settings SettingsReader, files FileRemover, logger *slog.Logger) *Cleanup {
	return &Cleanup{
		repo:     repo,
		settings: settings,
		files:    files,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run is best-effort: a failing user or bucket is logged and recorded in the
// report, and the sweep moves on.
func (c *Cleanup) Run(ctx context.Context) (*CleanupReport, error) {
	cfg, err := c.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	report := &CleanupReport{RetentionDays: cfg.DeclinedUploadRetentionDays, ObjectsDeleted: map[string]int{}}
	if !cfg.CleanupEnabled {
		report.Skipped = true
		c.logger.Info("cleanup disabled by settings")
		return report, nil
	}

	report.Cutoff = c.now().AddDate(0, 0, -int(cfg.DeclinedUploadRetentionDays))
	users, err := c.repo.CleanupCandidates(ctx, report.Cutoff)
	if err != nil {
		return nil, err
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		deleted, errs := c.files.RemoveAll(ctx, userID)
		for bucket, n := range deleted {
			report.ObjectsDeleted[string(bucket)] += n
			observability.RecordDeleted("cleanup", string(bucket), n)
		}
		if len(errs) > 0 {
			for _, e := range errs {
				c.logger.Error("cleanup failed for bucket", "user_id", userID, "error", e)
				report.Errors = append(report.Errors, e.Error())
			}
			continue
		}
		if err := c.repo.MarkUploadsRemoved(ctx, userID, c.now()); err != nil {
			c.logger.Error("mark uploads removed failed", "user_id", userID, "error", err)
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.UsersProcessed++
	}

	c.logger.Info("cleanup finished",
		"users", report.UsersProcessed,
		"candidates", len(users),
		"errors", len(report.Errors),
		"cutoff", report.Cutoff.Format(time.RFC3339),
	)
	return report, nil
}
