package application

import (
	"testing"

	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalChainHappyPath(t *testing.T) {
	s := State{Status: StatusPending}
	assert.Equal(t, staff.RoleCredit, s.Stage())

	s, err := Transition(s, staff.RoleCredit, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, State{Status: StatusUnderReview, CreditApproved: true}, s)
	assert.Equal(t, staff.RoleAudit, s.Stage())

	s, err = Transition(s, staff.RoleAudit, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, s.Status)
	assert.Equal(t, staff.RoleCOO, s.Stage())

	s, err = Transition(s, staff.RoleCOO, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s.Status)
	assert.True(t, s.COOApproved)
	assert.True(t, s.Terminal())
	assert.Equal(t, staff.Role(""), s.Stage())
}

func TestTransitionEnforcesOrdering(t *testing.T) {
	pending := State{Status: StatusPending}

	_, err := Transition(pending, staff.RoleAudit, ActionApprove)
	require.ErrorIs(t, err, ErrNotYourStage)
	_, err = Transition(pending, staff.RoleCOO, ActionApprove)
	require.ErrorIs(t, err, ErrNotYourStage)
	_, err = Transition(pending, staff.RoleManagingDirector, ActionDecline)
	require.ErrorIs(t, err, ErrNotYourStage)

	afterCredit := State{Status: StatusUnderReview, CreditApproved: true}
	_, err = Transition(afterCredit, staff.RoleCredit, ActionApprove)
	require.ErrorIs(t, err, ErrNotYourStage, "credit cannot approve twice")
}

func TestTerminalStatesRejectActions(t *testing.T) {
	approved := State{Status: StatusApproved, CreditApproved: true, AuditApproved: true, COOApproved: true}
	declined := State{Status: StatusDeclined, CreditApproved: true}

	for _, s := range []State{approved, declined} {
		for _, role := range []staff.Role{staff.RoleCredit, staff.RoleAudit, staff.RoleCOO} {
			for _, action := range []Action{ActionApprove, ActionDecline, ActionFlag} {
				_, err := Transition(s, role, action)
				assert.ErrorIs(t, err, ErrTerminalState)
			}
		}
	}
}

func TestDeclineAndFlagFromStage(t *testing.T) {
	s := State{Status: StatusUnderReview, CreditApproved: true}

	flagged, err := Transition(s, staff.RoleAudit, ActionFlag)
	require.NoError(t, err)
	assert.Equal(t, StatusFlagged, flagged.Status)
	assert.Equal(t, staff.RoleAudit, flagged.Stage(), "flagging keeps the stage")

	_, err = Transition(flagged, staff.RoleAudit, ActionFlag)
	require.ErrorIs(t, err, ErrAlreadyFlagged)

	resumed, err := Transition(flagged, staff.RoleAudit, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, resumed.Status)

	declined, err := Transition(flagged, staff.RoleAudit, ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, declined.Status)
	assert.True(t, declined.CreditApproved)
	assert.False(t, declined.AuditApproved)
}

func TestCOOApprovalImpliesApprovedForEveryReachableState(t *testing.T) {
	roles := []staff.Role{staff.RoleCredit, staff.RoleAudit, staff.RoleCOO, staff.RoleOperations}
	actions := []Action{ActionApprove, ActionDecline, ActionFlag}

	seen := map[State]bool{}
	frontier := []State{{Status: StatusPending}}
	for len(frontier) > 0 {
		s := frontier[0]
		frontier = frontier[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		require.NoError(t, s.Validate(), "reachable state %+v", s)
		if s.COOApproved {
			assert.Equal(t, StatusApproved, s.Status)
		}
		if s.AuditApproved {
			assert.True(t, s.CreditApproved)
		}
		for _, r := range roles {
			for _, a := range actions {
				if next, err := Transition(s, r, a); err == nil {
					frontier = append(frontier, next)
				}
			}
		}
	}
	assert.True(t, seen[State{Status: StatusApproved, CreditApproved: true, AuditApproved: true, COOApproved: true}])
}

func TestTransitionRejectsInconsistentInput(t *testing.T) {
	_, err := Transition(State{Status: StatusUnderReview, AuditApproved: true}, staff.RoleCOO, ActionApprove)
	require.ErrorIs(t, err, ErrInconsistentData)

	_, err = Transition(State{Status: StatusPending}, staff.RoleCredit, Action("escalate"))
	require.ErrorIs(t, err, ErrUnknownAction)
}
