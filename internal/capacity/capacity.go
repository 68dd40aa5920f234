// Package capacity manages per-(date, meal) caps and reports occupancy. The
// Booking Service does not call it: its capacity check reads the cap and
// count itself through store.GetMealCapacityTx and store.OccupancyTx.
package capacity

import (
	"context"
	"time"

	"github.com/navalmess/api/internal/model"
)

type repository interface {
	SetMealCapacity(ctx context.Context, c model.MealCapacity) error
	GetMealCapacity(ctx context.Context, date time.Time, meal model.Meal) (model.MealCapacity, error)
	ListMealCapacitiesForDate(ctx context.Context, date time.Time) ([]model.MealCapacity, error)
}

// Occupant is one entry of occupancy(date): current count plus the
// configured cap, or unlimited if unset.
type Occupant struct {
	Current int
	Cap     int // -1 = unlimited
}

// Unlimited reports whether no effective cap applies.
func (o Occupant) Unlimited() bool { return o.Cap < 0 }

// Service manages per-(date, meal) caps.
type Service struct {
	repo repository
}

func New(repo repository) *Service {
	return &Service{repo: repo}
}

// Set configures or removes (max < 0) the cap for a (date, meal) pair.
func (s *Service) Set(ctx context.Context, date time.Time, meal model.Meal, max int) error {
	return s.repo.SetMealCapacity(ctx, model.MealCapacity{Date: date, Meal: meal, MaxTotal: max})
}

var allMeals = []model.Meal{model.MealBreakfast, model.MealSnack, model.MealLunch, model.MealDinner}

// Occupancy reports current counts and configured caps for every meal on a
// date. current is the pure read; it does not itself gate a write — the
// Booking Service's capacity check runs a transaction-scoped equivalent
// (store.OccupancyTx) inside the same write transaction as the upsert.
func (s *Service) Occupancy(ctx context.Context, date time.Time, currentByMeal map[model.Meal]int) (map[model.Meal]Occupant, error) {
	caps, err := s.repo.ListMealCapacitiesForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	capByMeal := make(map[model.Meal]int, len(caps))
	for _, c := range caps {
		capByMeal[c.Meal] = c.MaxTotal
	}
	out := make(map[model.Meal]Occupant, len(allMeals))
	for _, m := range allMeals {
		cap, ok := capByMeal[m]
		if !ok {
			cap = -1
		}
		out[m] = Occupant{Current: currentByMeal[m], Cap: cap}
	}
	return out, nil
}

// WouldExceed reports whether adding delta bookings to (date, meal) would
// exceed its configured cap. An unset or negative cap never rejects.
func WouldExceed(cap model.MealCapacity, current, delta int) bool {
	if cap.Unbounded() {
		return false
	}
	return current+delta > cap.MaxTotal
}
