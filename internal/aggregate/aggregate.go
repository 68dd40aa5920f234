// Package aggregate is the pure read path that derives per-day and
// per-week totals and per-year roster views from the store's current
// contents. No caching: every call re-derives from the
// store.
package aggregate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
)

type repository interface {
	ListBookingsWithYear(ctx context.Context, date time.Time) ([]store.BookingWithYear, error)
	ListUsersByYear(ctx context.Context, year int) ([]model.User, error)
	AbsentUserIDsForDate(ctx context.Context, date time.Time) (map[uuid.UUID]bool, error)
}

// Service is the read-only totals and roster derivation.
type Service struct {
	repo repository
}

func New(repo repository) *Service {
	return &Service{repo: repo}
}

// DayTotals computes day_totals(date[, year]). Absent users and users in
// curricular year 0 are excluded.
func (s *Service) DayTotals(ctx context.Context, date time.Time, year *int) (model.DayTotals, error) {
	bookings, err := s.repo.ListBookingsWithYear(ctx, date)
	if err != nil {
		return model.DayTotals{}, err
	}
	absent, err := s.repo.AbsentUserIDsForDate(ctx, date)
	if err != nil {
		return model.DayTotals{}, err
	}

	var totals model.DayTotals
	for _, b := range bookings {
		if b.Year == 0 || !b.Active {
			continue
		}
		if year != nil && b.Year != *year {
			continue
		}
		if absent[b.UserID] {
			continue
		}
		accumulate(&totals, b.Booking)
	}
	return totals, nil
}

func accumulate(totals *model.DayTotals, b model.Booking) {
	if b.Breakfast {
		totals.Breakfast++
	}
	if b.Snack {
		totals.Snack++
	}
	switch b.LunchKind {
	case model.MealNormal:
		totals.LunchNormal++
	case model.MealVegetarian:
		totals.LunchVeg++
	case model.MealDiet:
		totals.LunchDiet++
	}
	switch b.DinnerKind {
	case model.MealNormal:
		totals.DinnerNormal++
	case model.MealVegetarian:
		totals.DinnerVeg++
	case model.MealDiet:
		totals.DinnerDiet++
	}
	if b.DinnerKind != model.MealNone && b.LeavesUnitAfterDinner {
		totals.DinnerLeavers++
	}
}

// WeekTotals returns day_totals for the seven consecutive dates starting at
// monday.
func (s *Service) WeekTotals(ctx context.Context, monday time.Time) ([]model.DayTotals, error) {
	out := make([]model.DayTotals, 7)
	for i := 0; i < 7; i++ {
		totals, err := s.DayTotals(ctx, monday.AddDate(0, 0, i), nil)
		if err != nil {
			return nil, err
		}
		out[i] = totals
	}
	return out, nil
}

// Roster returns one row per active user of year, joined with their
// booking on date (nil if they have no booking row) and their absence flag.
func (s *Service) Roster(ctx context.Context, year int, date time.Time) ([]model.RosterRow, error) {
	users, err := s.repo.ListUsersByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	bookings, err := s.repo.ListBookingsWithYear(ctx, date)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID]model.Booking, len(bookings))
	for _, b := range bookings {
		byUser[b.UserID] = b.Booking
	}
	absent, err := s.repo.AbsentUserIDsForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	out := make([]model.RosterRow, 0, len(users))
	for _, u := range users {
		row := model.RosterRow{User: u, Absent: absent[u.ID]}
		if b, ok := byUser[u.ID]; ok {
			bb := b
			row.Booking = &bb
		}
		out = append(out, row)
	}
	return out, nil
}
