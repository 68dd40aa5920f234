// Package absence implements the absence model: date-range rows that
// exclude a user's bookings from totals and capacity without deleting them.
package absence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type repository interface {
	CreateAbsence(ctx context.Context, a model.Absence) (model.Absence, error)
	GetAbsence(ctx context.Context, id int64) (model.Absence, error)
	DeleteAbsence(ctx context.Context, id int64) error
	IsAbsent(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error)
	ListAbsencesForUser(ctx context.Context, userID uuid.UUID) ([]model.Absence, error)
}

// Service manages absence intervals.
type Service struct {
	repo repository
}

func New(repo repository) *Service {
	return &Service{repo: repo}
}

// Create records a new absence. Staff or the user themselves may be the
// actor; ownership/role checks are the HTTP layer's responsibility, as the
// repo layer has no notion of "staff".
func (s *Service) Create(ctx context.Context, userID uuid.UUID, from, to time.Time, reason, actor string) (model.Absence, error) {
	if from.After(to) {
		return model.Absence{}, apperr.New(apperr.BadInput, "from_date must not be after to_date")
	}
	return s.repo.CreateAbsence(ctx, model.Absence{
		UserID: userID, FromDate: from, ToDate: to, Reason: reason, Author: actor,
	})
}

// Delete removes an absence by id. Callers must themselves verify the
// requesting actor is the owner or staff before calling this.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteAbsence(ctx, id)
}

// Get looks up a single absence, used by Delete's caller to check ownership.
func (s *Service) Get(ctx context.Context, id int64) (model.Absence, error) {
	return s.repo.GetAbsence(ctx, id)
}

// IsAbsent is the existential predicate consumed by the Booking Service and
// the Aggregator.
func (s *Service) IsAbsent(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error) {
	return s.repo.IsAbsent(ctx, userID, date)
}

// ListForUser returns every absence row owned by a user, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Absence, error) {
	return s.repo.ListAbsencesForUser(ctx, userID)
}
