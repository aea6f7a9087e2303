package admin

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

const (
	SettingRetentionDays  = "declined_upload_retention_days"
	SettingCleanupEnabled = "cleanup_enabled"

	DefaultRetentionDays = 30
	maxRetentionDays     = 3650
)

var ErrInvalidSettings = errors.New("invalid_settings")

// Action is one row of the approval audit trail.
type Action struct {
	ID              int64     `json:"id"`
	ApplicationID   string    `json:"application_id"`
	ApplicationKind string    `json:"application_kind"`
	AdminUserID     string    `json:"admin_user_id"`
	AdminEmail      string    `json:"admin_email,omitempty"`
	Role            string    `json:"role"`
	Action          string    `json:"action"`
	PreviousStatus  string    `json:"previous_status"`
	NewStatus       string    `json:"new_status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type ActionFilter struct {
	ApplicationID string
	AdminUserID   string
	Limit         int32
	Offset        int32
}

type Settings struct {
	DeclinedUploadRetentionDays int32 `json:"declined_upload_retention_days"`
	CleanupEnabled              bool  `json:"cleanup_enabled"`
}

type SettingsPatch struct {
	DeclinedUploadRetentionDays *int32 `json:"declined_upload_retention_days"`
	CleanupEnabled              *bool  `json:"cleanup_enabled"`
}

type ActionRepository interface {
	List(ctx context.Context, f ActionFilter) ([]Action, error)
}

type SettingsRepository interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value, updatedBy string) error
}

type AuditRepository interface {
	Log(ctx context.Context, in AuditLogInput) error
}

// AuditLogInput records administrative operations that are not approval
// decisions: settings changes, role assignments, maintenance runs.
type AuditLogInput struct {
	AdminUserID string
	Action      string
	TargetType  string
	TargetID    string
	Payload     []byte
}

type Service struct {
	actionRepo   ActionRepository
	settingsRepo SettingsRepository
	auditRepo    AuditRepository
}

func NewService(actionRepo ActionRepository, settingsRepo SettingsRepository, auditRepo AuditRepository) *Service {
	return &Service{actionRepo: actionRepo, settingsRepo: settingsRepo, auditRepo: auditRepo}
}

func (s *Service) ListActions(ctx context.Context, f ActionFilter) ([]Action, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.actionRepo.List(ctx, f)
}

// Settings returns the stored settings with defaults filled in for keys
// that were never written or hold unparseable values.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	out := Settings{DeclinedUploadRetentionDays: DefaultRetentionDays, CleanupEnabled: true}
	raw, err := s.settingsRepo.All(ctx)
	if err != nil {
		return out, err
	}
	if v, ok := raw[SettingRetentionDays]; ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			out.DeclinedUploadRetentionDays = int32(n)
		}
	}
	if v, ok := raw[SettingCleanupEnabled]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			out.CleanupEnabled = b
		}
	}
	return out, nil
}

func (s *Service) UpdateSettings(ctx context.Context, adminUserID string, patch SettingsPatch) (Settings, error) {
	if patch.DeclinedUploadRetentionDays == nil && patch.CleanupEnabled == nil {
		return Settings{}, ErrInvalidSettings
	}
	if d := patch.DeclinedUploadRetentionDays; d != nil {
		if *d < 1 || *d > maxRetentionDays {
			return Settings{}, ErrInvalidSettings
		}
		if err := s.settingsRepo.Set(ctx, SettingRetentionDays, strconv.Itoa(int(*d)), adminUserID); err != nil {
			return Settings{}, err
		}
	}
	if b := patch.CleanupEnabled; b != nil {
		if err := s.settingsRepo.Set(ctx, SettingCleanupEnabled, strconv.FormatBool(*b), adminUserID); err != nil {
			return Settings{}, err
		}
	}

	payload, _ := json.Marshal(patch)
	s.Log(ctx, adminUserID, "settings_updated", "settings", "admin_settings", payload)
	return s.Settings(ctx)
}

// Log writes an audit entry. Failures are swallowed; the audited operation
// has already happened.
func (s *Service) Log(ctx context.Context, adminUserID, action, targetType, targetID string, payload []byte) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_ = s.auditRepo.Log(ctx, AuditLogInput{
		AdminUserID: adminUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Payload:     payload,
	})
}
