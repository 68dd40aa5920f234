// Package admin implements the administrative operations over users: CRUD,
// password resets, bulk CSV import, and the end-of-year promotion. Every
// significant operation writes one AdminAuditEntry.
package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type repository interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetUserByNII(ctx context.Context, nii string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListUsersByYear(ctx context.Context, year int) ([]model.User, error)
	SearchUsersByName(ctx context.Context, query string) ([]model.User, error)
	UpdateUser(ctx context.Context, u model.User) error
	UpdateUserPassword(ctx context.Context, id uuid.UUID, hash string, mustChange bool) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	PromoteYears(ctx context.Context, policy map[int]int) (int64, error)
	RecordAdminAudit(ctx context.Context, actor, action, detail string) error
}

type passwordHasher func(password string) (string, error)

// Service implements the admin user-management operations.
type Service struct {
	repo repository
	hash passwordHasher
}

// New builds the admin service. hash is auth.HashPassword, injected so the
// package does not import the auth package's login machinery.
func New(repo repository, hash passwordHasher) *Service {
	return &Service{repo: repo, hash: hash}
}

// CreateInput is the admin's new-user form.
type CreateInput struct {
	NII      string `validate:"required"`
	NI       string
	FullName string `validate:"required"`
	Year     int    `validate:"min=0,max=8"`
	Role     model.Role
	Password string // empty = NII with must_change_password set
	Email    *string
	Phone    *string
}

// CreateUser inserts a new user. An omitted password defaults to the NII
// and forces a change on first login, the same rule the bulk import uses.
func (s *Service) CreateUser(ctx context.Context, in CreateInput, actor string) (model.User, error) {
	if in.NII == "" || in.FullName == "" {
		return model.User{}, apperr.New(apperr.BadInput, "nii and full name are required")
	}
	if in.Year < 0 || in.Year > 8 {
		return model.User{}, apperr.New(apperr.BadInput, "year must be between 0 and 8")
	}
	role := in.Role
	if role == "" {
		role = model.RoleStudent
	}
	password := in.Password
	mustChange := false
	if password == "" {
		password = in.NII
		mustChange = true
	}
	hash, err := s.hash(password)
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.Storage, "hash password", err)
	}

	u := model.User{
		ID:                 uuid.New(),
		NII:                in.NII,
		NI:                 in.NI,
		FullName:           in.FullName,
		Year:               in.Year,
		Role:               role,
		PasswordHash:       hash,
		MustChangePassword: mustChange,
		Email:              in.Email,
		Phone:              in.Phone,
		Active:             true,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return model.User{}, err
	}
	s.audit(ctx, actor, "user.create", u.NII)
	return u, nil
}

// UpdateInput is the admin's edit-user form. Nil fields are left unchanged.
type UpdateInput struct {
	NI       *string
	FullName *string
	Year     *int `validate:"omitempty,min=0,max=8"`
	Role     *model.Role
	Email    *string
	Phone    *string
	Active   *bool
}

// UpdateUser applies the non-nil fields of in to the user.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateInput, actor string) (model.User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if in.NI != nil {
		u.NI = *in.NI
	}
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	if in.Year != nil {
		if *in.Year < 0 || *in.Year > 8 {
			return model.User{}, apperr.New(apperr.BadInput, "year must be between 0 and 8")
		}
		u.Year = *in.Year
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Email != nil {
		u.Email = in.Email
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return model.User{}, err
	}
	s.audit(ctx, actor, "user.update", u.NII)
	return u, nil
}

// DeleteUser removes a user and cascades their owned rows. Append-only
// logs survive and keep referring to the user by NII string.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID, actor string) error {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "user.delete", u.NII)
	return nil
}

// ResetPassword sets the user's password back to their NII and forces a
// change on next login.
func (s *Service) ResetPassword(ctx context.Context, id uuid.UUID, actor string) error {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := s.hash(u.NII)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "hash password", err)
	}
	if err := s.repo.UpdateUserPassword(ctx, u.ID, hash, true); err != nil {
		return err
	}
	s.audit(ctx, actor, "user.reset_password", u.NII)
	return nil
}

// DefaultPromotionPolicy is the end-of-year transition: curricular years
// advance, year 6 concludes, the foundation course (7) enters year 1, and
// the complementary course (8) concludes. The 7/8 rules are configuration
// rather than doctrine and can be overridden per promotion run.
func DefaultPromotionPolicy() map[int]int {
	return map[int]int{1: 2, 2: 3, 3: 4, 4: 5, 5: 6, 6: 0, 7: 1, 8: 0}
}

// Promote applies a year-transition policy to the whole roster. A nil
// policy uses DefaultPromotionPolicy.
func (s *Service) Promote(ctx context.Context, policy map[int]int, actor string) (int64, error) {
	if policy == nil {
		policy = DefaultPromotionPolicy()
	}
	for from, to := range policy {
		if from < 1 || from > 8 || to < 0 || to > 8 {
			return 0, apperr.New(apperr.BadInput, "promotion policy years must be within 0-8")
		}
	}
	n, err := s.repo.PromoteYears(ctx, policy)
	if err != nil {
		return 0, err
	}
	s.audit(ctx, actor, "users.promote", fmt.Sprintf("%d users promoted", n))
	return n, nil
}

// Get, List, ListByYear, and Search are thin pass-throughs for the admin
// viewers.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) ListByYear(ctx context.Context, year int) ([]model.User, error) {
	return s.repo.ListUsersByYear(ctx, year)
}

func (s *Service) Search(ctx context.Context, query string) ([]model.User, error) {
	return s.repo.SearchUsersByName(ctx, query)
}

// audit records the admin action; a failed audit write is logged as a
// warning and never fails the already-committed operation.
func (s *Service) audit(ctx context.Context, actor, action, detail string) {
	if err := s.repo.RecordAdminAudit(ctx, actor, action, detail); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("admin audit write failed")
	}
}
