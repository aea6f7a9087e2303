package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumenmfb/backend/internal/db"
	"github.com/lumenmfb/backend/internal/domain/staff"
)

var ErrSessionInvalid = errors.New("session_invalid")

type Repository interface {
	UpsertUser(ctx context.Context, subject, email, fullName string) (*db.User, error)
	GetUserByID(ctx context.Context, userID string) (*db.User, error)
	CreateSession(ctx context.Context, userID, refreshHash, role, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*db.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	UpdateSessionRefreshHash(ctx context.Context, sessionID, refreshHash string) error
}

// RoleResolver decides the role a session carries.
type RoleResolver interface {
	Resolve(ctx context.Context, userID, accessCode string) (staff.Role, error)
	Reconfirm(ctx context.Context, userID string, claimed staff.Role) staff.Role
	Bootstrap(ctx context.Context, userID, accessCode string) error
}

// Bootstrap names the identity that becomes the first managing director.
type Bootstrap struct {
	Subject    string
	AccessCode string
}

type Service struct {
	repo       Repository
	jwt        *JWTManager
	verifier   IdentityVerifier
	roles      RoleResolver
	bootstrap  Bootstrap
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	Role         staff.Role
	User         *db.User
}

type LoginInput struct {
	IdentityToken string
	AccessCode    string
	UserAgent     string
	IPAddress     string
}

func NewService(repo Repository, jwt *JWTManager, verifier IdentityVerifier, roles RoleResolver, bootstrap Bootstrap, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		jwt:        jwt,
		verifier:   verifier,
		roles:      roles,
		bootstrap:  bootstrap,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login exchanges an identity-provider token for a first-party session.
// Staff get their role only when they present a valid access code.
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthTokens, error) {
	identity, err := s.verifier.VerifyAccessToken(ctx, in.IdentityToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.UpsertUser(ctx, identity.Subject, identity.Email, identity.FullName)
	if err != nil {
		return nil, err
	}

	if s.bootstrap.Subject != "" && s.bootstrap.Subject == identity.Subject {
		if err := s.roles.Bootstrap(ctx, user.ID, s.bootstrap.AccessCode); err != nil {
			return nil, err
		}
	}

	role, err := s.roles.Resolve(ctx, user.ID, in.AccessCode)
	if err != nil {
		return nil, err
	}

	bundle, err := s.createSessionAndTokens(ctx, user.ID, role, in.UserAgent, in.IPAddress)
	if err != nil {
		return nil, err
	}
	bundle.User = user
	return bundle, nil
}

// Refresh rotates the session. A staff role survives only while the
// assignment is still active and unlocked.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*AuthTokens, error) {
	claims, err := s.jwt.Parse(refreshToken)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrSessionInvalid
	}

	session, err := s.repo.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil || s.now().After(session.ExpiresAt) {
		return nil, ErrSessionInvalid
	}
	if session.RefreshTokenHash != hashToken(refreshToken) {
		return nil, ErrSessionInvalid
	}

	if err := s.repo.RevokeSession(ctx, session.ID); err != nil {
		return nil, err
	}

	role := s.roles.Reconfirm(ctx, session.UserID, staff.Role(session.Role))
	bundle, err := s.createSessionAndTokens(ctx, session.UserID, role, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	bundle.User = user
	return bundle, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.Parse(refreshToken)
	if err != nil {
		return nil
	}
	if claims.Type != TokenTypeRefresh {
		return nil
	}
	return s.repo.RevokeSession(ctx, claims.SessionID)
}

func (s *Service) Me(ctx context.Context, userID string) (*db.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) createSessionAndTokens(ctx context.Context, userID string, role staff.Role, userAgent, ipAddress string) (*AuthTokens, error) {
	expiresAt := s.now().Add(s.refreshTTL)
	sessionSeed := uuid.NewString()
	session, err := s.repo.CreateSession(ctx, userID, hashToken(sessionSeed), string(role), userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.Mint(userID, session.ID, string(role), TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.Mint(userID, session.ID, string(role), TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSessionRefreshHash(ctx, session.ID, hashToken(refreshToken)); err != nil {
		return nil, err
	}

	return &AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken, SessionID: session.ID, Role: role}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
