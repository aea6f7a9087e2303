package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actionRepoMock struct{ last ActionFilter }

func (m *actionRepoMock) List(_ context.Context, f ActionFilter) ([]Action, error) {
	m.last = f
	return []Action{{ID: 1, ApplicationID: f.ApplicationID}}, nil
}

type settingsRepoMock struct {
	values map[string]string
	err    error
}

func (m *settingsRepoMock) All(_ context.Context) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]string{}
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *settingsRepoMock) Set(_ context.Context, key, value, _ string) error {
	m.values[key] = value
	return nil
}

type auditRepoMock struct{ logs []AuditLogInput }

func (m *auditRepoMock) Log(_ context.Context, in AuditLogInput) error {
	m.logs = append(m.logs, in)
	return errors.New("ignored")
}

func TestSettingsDefaults(t *testing.T) {
	svc := NewService(&actionRepoMock{}, &settingsRepoMock{values: map[string]string{SettingRetentionDays: "nonsense"}}, &auditRepoMock{})

	got, err := svc.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{DeclinedUploadRetentionDays: DefaultRetentionDays, CleanupEnabled: true}, got)
}

func TestUpdateSettings(t *testing.T) {
	settings := &settingsRepoMock{values: map[string]string{}}
	audit := &auditRepoMock{}
	svc := NewService(&actionRepoMock{}, settings, audit)

	days := int32(45)
	off := false
	got, err := svc.UpdateSettings(context.Background(), "md-1", SettingsPatch{DeclinedUploadRetentionDays: &days, CleanupEnabled: &off})
	require.NoError(t, err)
	assert.Equal(t, int32(45), got.DeclinedUploadRetentionDays)
	assert.False(t, got.CleanupEnabled)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "settings_updated", audit.logs[0].Action)

	zero := int32(0)
	_, err = svc.UpdateSettings(context.Background(), "md-1", SettingsPatch{DeclinedUploadRetentionDays: &zero})
	require.ErrorIs(t, err, ErrInvalidSettings)
	_, err = svc.UpdateSettings(context.Background(), "md-1", SettingsPatch{})
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestListActionsClampsPaging(t *testing.T) {
	actions := &actionRepoMock{}
	svc := NewService(actions, &settingsRepoMock{values: map[string]string{}}, &auditRepoMock{})

	_, err := svc.ListActions(context.Background(), ActionFilter{ApplicationID: "app-1", Limit: 5000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, int32(50), actions.last.Limit)
	assert.Equal(t, int32(0), actions.last.Offset)
}
