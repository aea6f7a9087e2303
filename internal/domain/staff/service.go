package staff

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const minAccessCodeLength = 6

type Service struct {
	repo        Repository
	maxAttempts int32
	lockout     time.Duration
	now         func() time.Time
}

func NewService(repo Repository, maxAttempts int32, lockout time.Duration) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockout <= 0 {
		lockout = 30 * time.Minute
	}
	return &Service{
		repo:        repo,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Resolve decides which role a session is issued with. Users without an
// active assignment, or who do not present an access code, are customers.
// A wrong code counts towards the lockout threshold.
func (s *Service) Resolve(ctx context.Context, userID, accessCode string) (Role, error) {
	a, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return RoleCustomer, nil
	}
	if err != nil {
		return "", err
	}
	if !a.IsActive || strings.TrimSpace(accessCode) == "" {
		return RoleCustomer, nil
	}

	now := s.now()
	if a.LockedAt(now) {
		return "", ErrLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(a.AccessCodeHash), []byte(accessCode)) != nil {
		failed := a.FailedAttempts + 1
		var lockedUntil *time.Time
		if failed >= s.maxAttempts {
			until := now.Add(s.lockout)
			lockedUntil = &until
			failed = 0
		}
		if err := s.repo.RecordFailure(ctx, userID, failed, lockedUntil); err != nil {
			return "", err
		}
		if lockedUntil != nil {
			return "", ErrLocked
		}
		return "", ErrInvalidAccessCode
	}

	if a.FailedAttempts > 0 || a.LockedUntil != nil {
		if err := s.repo.ResetFailures(ctx, userID); err != nil {
			return "", err
		}
	}
	return a.Role, nil
}

// Reconfirm re-validates a previously granted role on session refresh.
func (s *Service) Reconfirm(ctx context.Context, userID string, claimed Role) Role {
	if !claimed.IsStaff() {
		return RoleCustomer
	}
	a, err := s.repo.Get(ctx, userID)
	if err != nil || !a.IsActive || a.Role != claimed || a.LockedAt(s.now()) {
		return RoleCustomer
	}
	return a.Role
}

func (s *Service) Assign(ctx context.Context, adminUserID, email, rawRole, accessCode string) (*Assignment, error) {
	role, err := ParseRole(strings.TrimSpace(rawRole))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(accessCode)) < minAccessCodeLength {
		return nil, ErrWeakAccessCode
	}
	userID, err := s.repo.FindUserIDByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(accessCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, AssignInput{
		UserID:         userID,
		Role:           role,
		AccessCodeHash: string(hash),
		AssignedBy:     adminUserID,
	})
}

// Bootstrap grants managing_director to the configured first administrator
// if nobody has assigned that user a role yet.
func (s *Service) Bootstrap(ctx context.Context, userID, accessCode string) error {
	if strings.TrimSpace(accessCode) == "" {
		return nil
	}
	_, err := s.repo.Get(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(accessCode), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.repo.Upsert(ctx, AssignInput{UserID: userID, Role: RoleManagingDirector, AccessCodeHash: string(hash)})
	return err
}

func (s *Service) List(ctx context.Context) ([]Assignment, error) {
	return s.repo.List(ctx)
}

func (s *Service) SetActive(ctx context.Context, userID string, active bool) error {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, userID, active)
}

func (s *Service) Unlock(ctx context.Context, userID string) error {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return err
	}
	return s.repo.ResetFailures(ctx, userID)
}
