// Package audit provides the read side of the two append-only log tables
// plus the writer for administrative actions. Booking
// field changes are written by the Booking Service inside its own write
// transaction (store.InsertBookingLogTx); login events by the
// Authentication service (store.RecordLoginEvent).
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/navalmess/api/internal/model"
)

type repository interface {
	ListBookingLog(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.BookingLogEntry, error)
	ListLoginEvents(ctx context.Context, nii string, limit, offset int) ([]model.LoginEvent, error)
	RecordAdminAudit(ctx context.Context, actor, action, detail string) error
	ListAdminAudit(ctx context.Context, limit, offset int) ([]model.AdminAuditEntry, error)
}

// Service reads and writes the append-only audit tables.
type Service struct {
	repo repository
}

func New(repo repository) *Service {
	return &Service{repo: repo}
}

// RecordAdminAction writes one AdminAuditEntry for a significant admin
// operation: create/edit/delete user, reset password, import, calendar
// edits, promotion.
func (s *Service) RecordAdminAction(ctx context.Context, actor, action, detail string) error {
	return s.repo.RecordAdminAudit(ctx, actor, action, detail)
}

// BookingLog returns a page of field-change entries for a user.
func (s *Service) BookingLog(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.BookingLogEntry, error) {
	return s.repo.ListBookingLog(ctx, userID, limit, offset)
}

// LoginEvents returns a page of authentication attempts for nii.
func (s *Service) LoginEvents(ctx context.Context, nii string, limit, offset int) ([]model.LoginEvent, error) {
	return s.repo.ListLoginEvents(ctx, nii, limit, offset)
}

// AdminActions returns a page of administrative audit entries.
func (s *Service) AdminActions(ctx context.Context, limit, offset int) ([]model.AdminAuditEntry, error) {
	return s.repo.ListAdminAudit(ctx, limit, offset)
}
