package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type capacityRow struct {
	Date     string `db:"date"`
	Meal     string `db:"meal"`
	MaxTotal int    `db:"max_total"`
}

func (r capacityRow) toModel() model.MealCapacity {
	d, _ := time.Parse(dateLayout, r.Date)
	return model.MealCapacity{Date: d, Meal: model.Meal(r.Meal), MaxTotal: r.MaxTotal}
}

// SetMealCapacity creates or replaces the cap for one (date, meal) pair.
// A negative MaxTotal means unbounded.
func (s *Store) SetMealCapacity(ctx context.Context, c model.MealCapacity) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meal_capacities (date, meal, max_total) VALUES (?, ?, ?)
			ON CONFLICT(date, meal) DO UPDATE SET max_total = excluded.max_total`,
			c.Date.Format(dateLayout), string(c.Meal), c.MaxTotal)
		if err != nil {
			return apperr.Wrap(apperr.Storage, "set meal capacity", err)
		}
		return nil
	})
}

// GetMealCapacity returns the configured cap, defaulting to unbounded
// (MaxTotal -1) when no row exists for the pair.
func (s *Store) GetMealCapacity(ctx context.Context, date time.Time, meal model.Meal) (model.MealCapacity, error) {
	var row capacityRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM meal_capacities WHERE date = ? AND meal = ?`,
		date.Format(dateLayout), string(meal))
	if isNoRows(err) {
		return model.MealCapacity{Date: date, Meal: meal, MaxTotal: -1}, nil
	}
	if err != nil {
		return model.MealCapacity{}, apperr.Wrap(apperr.Storage, "get meal capacity", err)
	}
	return row.toModel(), nil
}

// GetMealCapacityTx is the transaction-bound counterpart used by the
// Capacity Controller inside the Booking Service's write transaction, so
// the cap lookup and the occupancy count it gates observe one snapshot.
func GetMealCapacityTx(ctx context.Context, tx *sqlx.Tx, date time.Time, meal model.Meal) (model.MealCapacity, error) {
	var row capacityRow
	err := tx.GetContext(ctx, &row, `SELECT * FROM meal_capacities WHERE date = ? AND meal = ?`,
		date.Format(dateLayout), string(meal))
	if isNoRows(err) {
		return model.MealCapacity{Date: date, Meal: meal, MaxTotal: -1}, nil
	}
	if err != nil {
		return model.MealCapacity{}, apperr.Wrap(apperr.Storage, "get meal capacity", err)
	}
	return row.toModel(), nil
}

// mealColumn maps a Meal to the boolean/kind column that represents intent
// for it on the bookings table.
func mealColumn(meal model.Meal) string {
	switch meal {
	case model.MealBreakfast:
		return "breakfast = 1"
	case model.MealSnack:
		return "snack = 1"
	case model.MealLunch:
		return "lunch_kind != ''"
	case model.MealDinner:
		return "dinner_kind != ''"
	default:
		return "0"
	}
}

// OccupancyTx counts the bookings for (date, meal) that are not excluded by
// an active absence, i.e. the Capacity Controller's occupancy(date, meal).
// Run inside the same write transaction as the capacity check it feeds.
func OccupancyTx(ctx context.Context, tx *sqlx.Tx, date time.Time, meal model.Meal) (int, error) {
	query := `
		SELECT COUNT(*) FROM bookings b
		WHERE b.date = ? AND ` + mealColumn(meal) + `
		AND NOT EXISTS (
			SELECT 1 FROM absences a
			WHERE a.user_id = b.user_id AND a.from_date <= b.date AND a.to_date >= b.date
		)`
	var n int
	if err := tx.GetContext(ctx, &n, query, date.Format(dateLayout)); err != nil {
		return 0, apperr.Wrap(apperr.Storage, "occupancy", err)
	}
	return n, nil
}

// Occupancy returns the current absence-excluded booking count for every
// meal on a date, the read feeding the staff day panel. The write-path
// equivalent is OccupancyTx.
func (s *Store) Occupancy(ctx context.Context, date time.Time) (map[model.Meal]int, error) {
	out := make(map[model.Meal]int, 4)
	for _, meal := range []model.Meal{model.MealBreakfast, model.MealSnack, model.MealLunch, model.MealDinner} {
		query := `
			SELECT COUNT(*) FROM bookings b
			WHERE b.date = ? AND ` + mealColumn(meal) + `
			AND NOT EXISTS (
				SELECT 1 FROM absences a
				WHERE a.user_id = b.user_id AND a.from_date <= b.date AND a.to_date >= b.date
			)`
		var n int
		if err := s.db.GetContext(ctx, &n, query, date.Format(dateLayout)); err != nil {
			return nil, apperr.Wrap(apperr.Storage, "occupancy", err)
		}
		out[meal] = n
	}
	return out, nil
}

// ListMealCapacitiesForDate returns every configured cap for a date.
func (s *Store) ListMealCapacitiesForDate(ctx context.Context, date time.Time) ([]model.MealCapacity, error) {
	var rows []capacityRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM meal_capacities WHERE date = ?`, date.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list meal capacities for date", err)
	}
	out := make([]model.MealCapacity, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}
