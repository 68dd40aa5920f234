// Package auth implements credential verification, lockout after repeated
// failures, and identity-assertion issuance.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

const (
	lockoutWindow    = 10 // last N login_events considered
	lockoutThreshold = 5  // failures within the window that trigger a lock
	lockoutDuration  = 15 * time.Minute
)

type repository interface {
	GetUserByNII(ctx context.Context, nii string) (model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
	RecordLoginEvent(ctx context.Context, nii string, success bool, ip string) error
	ListLoginEvents(ctx context.Context, nii string, limit, offset int) ([]model.LoginEvent, error)
	SetUserLockedUntil(ctx context.Context, id uuid.UUID, until *time.Time) error
	CountUsersByRole(ctx context.Context, role model.Role) (int, error)
	UpdateUserPassword(ctx context.Context, id uuid.UUID, hash string, mustChange bool) error
	UpdateUserContacts(ctx context.Context, id uuid.UUID, email, phone *string) error
}

// Service authenticates users and enforces the lockout policy.
type Service struct {
	repo             repository
	jwt              *JWTManager
	nonProduction    bool
	fallbackAdminNII string
}

// New builds an Authentication & Lockout service. nonProduction mirrors
// !Config.IsProduction(): system and fallback accounts are only ever
// honored off production.
func New(repo repository, jwt *JWTManager, nonProduction bool) *Service {
	return &Service{repo: repo, jwt: jwt, nonProduction: nonProduction, fallbackAdminNII: "admin"}
}

// Login verifies credentials, enforces the lockout policy, and on success
// issues a signed identity assertion and mints the LoginEvent audit trail.
func (s *Service) Login(ctx context.Context, nii, password, ip string) (model.User, string, error) {
	if s.nonProduction {
		if u, hash, ok := lookupSystemAccount(nii); ok {
			if !VerifyPassword(password, hash) {
				_ = s.repo.RecordLoginEvent(ctx, nii, false, ip)
				return model.User{}, "", apperr.New(apperr.NotAllowed, "invalid credentials")
			}
			_ = s.repo.RecordLoginEvent(ctx, nii, true, ip)
			token, err := s.jwt.Generate(u)
			return u, token, err
		}
	}

	u, err := s.repo.GetUserByNII(ctx, nii)
	if apperr.Is(err, apperr.NotFound) {
		if s.nonProduction && nii == s.fallbackAdminNII {
			if admins, cerr := s.repo.CountUsersByRole(ctx, model.RoleAdmin); cerr == nil && admins == 0 {
				return s.loginFallbackAdmin(ctx, nii, password, ip)
			}
		}
		_ = s.repo.RecordLoginEvent(ctx, nii, false, ip)
		return model.User{}, "", apperr.New(apperr.NotAllowed, "invalid credentials")
	}
	if err != nil {
		return model.User{}, "", err
	}

	if u.LockedUntil != nil && u.LockedUntil.After(time.Now()) {
		return model.User{}, "", apperr.Locked(*u.LockedUntil)
	}

	if !VerifyPassword(password, u.PasswordHash) {
		if rerr := s.recordFailureAndMaybeLock(ctx, u); rerr != nil {
			return model.User{}, "", rerr
		}
		return model.User{}, "", apperr.New(apperr.NotAllowed, "invalid credentials")
	}

	if err := s.repo.RecordLoginEvent(ctx, nii, true, ip); err != nil {
		return model.User{}, "", err
	}
	token, err := s.jwt.Generate(u)
	if err != nil {
		return model.User{}, "", err
	}
	return u, token, nil
}

// recordFailureAndMaybeLock appends the failed LoginEvent and, if the last
// lockoutWindow events for this NII contain at least lockoutThreshold
// failures, sets locked_until.
func (s *Service) recordFailureAndMaybeLock(ctx context.Context, u model.User) error {
	if err := s.repo.RecordLoginEvent(ctx, u.NII, false, ""); err != nil {
		return err
	}
	recent, err := s.repo.ListLoginEvents(ctx, u.NII, lockoutWindow, 0)
	if err != nil {
		return err
	}
	failures := 0
	for _, e := range recent {
		if !e.Success {
			failures++
		}
	}
	if failures >= lockoutThreshold {
		until := time.Now().Add(lockoutDuration)
		return s.repo.SetUserLockedUntil(ctx, u.ID, &until)
	}
	return nil
}

// ChangePassword verifies the current password and replaces it, clearing
// must_change_password. This is the only path that clears the flag.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if len(next) < 4 {
		return apperr.New(apperr.BadInput, "new password is too short")
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(current, u.PasswordHash) {
		return apperr.New(apperr.NotAllowed, "current password is incorrect")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "hash password", err)
	}
	return s.repo.UpdateUserPassword(ctx, userID, hash, false)
}

// UpdateContacts lets a user maintain their own email and phone, the
// addresses the Notification Scheduler delivers to.
func (s *Service) UpdateContacts(ctx context.Context, userID uuid.UUID, email, phone *string) error {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.repo.UpdateUserContacts(ctx, userID, email, phone)
}

func (s *Service) loginFallbackAdmin(ctx context.Context, nii, password, ip string) (model.User, string, error) {
	if !VerifyPassword(password, fallbackAdminHash) {
		_ = s.repo.RecordLoginEvent(ctx, nii, false, ip)
		return model.User{}, "", apperr.New(apperr.NotAllowed, "invalid credentials")
	}
	_ = s.repo.RecordLoginEvent(ctx, nii, true, ip)
	u := model.User{NII: nii, FullName: "Fallback Administrator", Role: model.RoleAdmin, Active: true}
	token, err := s.jwt.Generate(u)
	return u, token, err
}
