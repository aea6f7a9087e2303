package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lumenmfb/backend/internal/observability"
)

// PurgeConfirmation must be sent verbatim to run a purge.
const PurgeConfirmation = "PURGE ALL CUSTOMER DATA"

var ErrPurgeNotConfirmed = errors.New("purge_not_confirmed")

type PurgeRepository interface {
	NonStaffUserIDs(ctx context.Context) ([]string, error)
	DeleteUsers(ctx context.Context, userIDs []string) (int64, error)
}

type PurgeReport struct {
	UsersDeleted   int64          `json:"users_deleted"`
	ObjectsDeleted map[string]int `json:"objects_deleted"`
	Errors         []string       `json:"errors,omitempty"`
}

// Purge deletes every user without a staff role, their rows and their
// files. There is no undo.
type Purge struct {
	repo   PurgeRepository
	files  FileRemover
	logger *slog.Logger
}

func NewPurge(repo PurgeRepository, files FileRemover, logger *slog.Logger) *Purge {
	return &Purge{repo: repo, files: files, logger: logger}
}

func (p *Purge) Run(ctx context.Context, confirm string) (*PurgeReport, error) {
	if confirm != PurgeConfirmation {
		return nil, ErrPurgeNotConfirmed
	}
	users, err := p.repo.NonStaffUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &PurgeReport{ObjectsDeleted: map[string]int{}}
	for _, userID := range users {
		deleted, errs := p.files.RemoveAll(ctx, userID)
		for bucket, n := range deleted {
			report.ObjectsDeleted[string(bucket)] += n
			observability.RecordDeleted("purge", string(bucket), n)
		}
		for _, e := range errs {
			p.logger.Error("purge storage failure", "user_id", userID, "error", e)
			report.Errors = append(report.Errors, e.Error())
		}
	}

	n, err := p.repo.DeleteUsers(ctx, users)
	if err != nil {
		return report, err
	}
	report.UsersDeleted = n
	p.logger.Warn("customer data purged", "users", n, "storage_errors", len(report.Errors))
	return report, nil
}
