package application

import (
	"errors"

	"github.com/lumenmfb/backend/internal/domain/staff"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusDeclined    Status = "declined"
	StatusFlagged     Status = "flagged"
)

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusDeclined, StatusFlagged:
		return s, true
	}
	return "", false
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
	ActionFlag    Action = "flag"
)

var (
	ErrTerminalState    = errors.New("application_closed")
	ErrNotYourStage     = errors.New("not_your_stage")
	ErrAlreadyFlagged   = errors.New("already_flagged")
	ErrUnknownAction    = errors.New("unknown_action")
	ErrInconsistentData = errors.New("inconsistent_application_state")
)

// State is everything the approval chain depends on. Status is
// authoritative for the outcome; the three flags record how far the
// application has travelled through credit → audit → coo.
type State struct {
	Status         Status
	CreditApproved bool
	AuditApproved  bool
	COOApproved    bool
}

func (s State) Terminal() bool {
	return s.Status == StatusApproved || s.Status == StatusDeclined
}

// Stage is the role whose decision the application is waiting for, or ""
// when the application is closed.
func (s State) Stage() staff.Role {
	if s.Terminal() {
		return ""
	}
	switch {
	case !s.CreditApproved:
		return staff.RoleCredit
	case !s.AuditApproved:
		return staff.RoleAudit
	case !s.COOApproved:
		return staff.RoleCOO
	}
	return ""
}

// Validate checks the invariants the database also enforces.
func (s State) Validate() error {
	if _, ok := ParseStatus(string(s.Status)); !ok {
		return ErrInconsistentData
	}
	if s.AuditApproved && !s.CreditApproved {
		return ErrInconsistentData
	}
	if s.COOApproved && !s.AuditApproved {
		return ErrInconsistentData
	}
	if s.COOApproved != (s.Status == StatusApproved) {
		return ErrInconsistentData
	}
	if s.Status == StatusPending && s.CreditApproved {
		return ErrInconsistentData
	}
	return nil
}

func CanAct(s State, role staff.Role) bool {
	stage := s.Stage()
	return stage != "" && stage == role
}

// Transition applies one admin decision. Only the role whose stage it is may
// act; coo approval is the only way into approved.
func Transition(s State, role staff.Role, action Action) (State, error) {
	if err := s.Validate(); err != nil {
		return s, err
	}
	if s.Terminal() {
		return s, ErrTerminalState
	}
	if !CanAct(s, role) {
		return s, ErrNotYourStage
	}

	next := s
	switch action {
	case ActionApprove:
		switch role {
		case staff.RoleCredit:
			next.CreditApproved = true
			next.Status = StatusUnderReview
		case staff.RoleAudit:
			next.AuditApproved = true
			next.Status = StatusUnderReview
		case staff.RoleCOO:
			next.COOApproved = true
			next.Status = StatusApproved
		}
	case ActionDecline:
		next.Status = StatusDeclined
	case ActionFlag:
		if s.Status == StatusFlagged {
			return s, ErrAlreadyFlagged
		}
		next.Status = StatusFlagged
	default:
		return s, ErrUnknownAction
	}
	return next, nil
}
