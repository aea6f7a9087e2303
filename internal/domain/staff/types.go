package staff

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleCustomer         Role = "customer"
	RoleCredit           Role = "credit"
	RoleAudit            Role = "audit"
	RoleCOO              Role = "coo"
	RoleOperations       Role = "operations"
	RoleManagingDirector Role = "managing_director"
)

var (
	ErrNotFound          = errors.New("role_not_found")
	ErrUserNotFound      = errors.New("user_not_found")
	ErrInvalidRole       = errors.New("invalid_role")
	ErrInvalidAccessCode = errors.New("invalid_access_code")
	ErrWeakAccessCode    = errors.New("weak_access_code")
	ErrLocked            = errors.New("role_locked")
)

// ParseRole accepts only roles that can be assigned to staff.
func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleCredit, RoleAudit, RoleCOO, RoleOperations, RoleManagingDirector:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) IsStaff() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Actor is the authenticated caller of a domain operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsStaff() bool { return a.Role.IsStaff() }

type Assignment struct {
	UserID         string     `json:"user_id"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	IsActive       bool       `json:"is_active"`
	FailedAttempts int32      `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	AccessCodeHash string     `json:"-"`
	AssignedBy     string     `json:"assigned_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (a Assignment) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

type AssignInput struct {
	UserID         string
	Role           Role
	AccessCodeHash string
	AssignedBy     string
}

type Repository interface {
	Get(ctx context.Context, userID string) (*Assignment, error)
	List(ctx context.Context) ([]Assignment, error)
	FindUserIDByEmail(ctx context.Context, email string) (string, error)
	Upsert(ctx context.Context, in AssignInput) (*Assignment, error)
	SetActive(ctx context.Context, userID string, active bool) error
	RecordFailure(ctx context.Context, userID string, failedAttempts int32, lockedUntil *time.Time) error
	ResetFailures(ctx context.Context, userID string) error
}
