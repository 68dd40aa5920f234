package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type menuRow struct {
	Date         string         `db:"date"`
	Breakfast    sql.NullString `db:"breakfast"`
	Snack        sql.NullString `db:"snack"`
	LunchNormal  sql.NullString `db:"lunch_normal"`
	LunchVeg     sql.NullString `db:"lunch_veg"`
	LunchDiet    sql.NullString `db:"lunch_diet"`
	DinnerNormal sql.NullString `db:"dinner_normal"`
	DinnerVeg    sql.NullString `db:"dinner_veg"`
	DinnerDiet   sql.NullString `db:"dinner_diet"`
}

func nullableToPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func (r menuRow) toModel() model.DailyMenu {
	d, _ := time.Parse(dateLayout, r.Date)
	return model.DailyMenu{
		Date:         d,
		Breakfast:    nullableToPtr(r.Breakfast),
		Snack:        nullableToPtr(r.Snack),
		LunchNormal:  nullableToPtr(r.LunchNormal),
		LunchVeg:     nullableToPtr(r.LunchVeg),
		LunchDiet:    nullableToPtr(r.LunchDiet),
		DinnerNormal: nullableToPtr(r.DinnerNormal),
		DinnerVeg:    nullableToPtr(r.DinnerVeg),
		DinnerDiet:   nullableToPtr(r.DinnerDiet),
	}
}

// UpsertDailyMenu creates or replaces the kitchen's menu text for a date.
func (s *Store) UpsertDailyMenu(ctx context.Context, m model.DailyMenu) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_menus (date, breakfast, snack, lunch_normal, lunch_veg, lunch_diet, dinner_normal, dinner_veg, dinner_diet)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				breakfast = excluded.breakfast,
				snack = excluded.snack,
				lunch_normal = excluded.lunch_normal,
				lunch_veg = excluded.lunch_veg,
				lunch_diet = excluded.lunch_diet,
				dinner_normal = excluded.dinner_normal,
				dinner_veg = excluded.dinner_veg,
				dinner_diet = excluded.dinner_diet`,
			m.Date.Format(dateLayout), m.Breakfast, m.Snack, m.LunchNormal, m.LunchVeg, m.LunchDiet,
			m.DinnerNormal, m.DinnerVeg, m.DinnerDiet)
		if err != nil {
			return apperr.Wrap(apperr.Storage, "upsert daily menu", err)
		}
		return nil
	})
}

// GetDailyMenu returns the menu for a date, or apperr.NotFound.
func (s *Store) GetDailyMenu(ctx context.Context, date time.Time) (model.DailyMenu, error) {
	var row menuRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM daily_menus WHERE date = ?`, date.Format(dateLayout))
	if isNoRows(err) {
		return model.DailyMenu{}, apperr.New(apperr.NotFound, "no menu for date")
	}
	if err != nil {
		return model.DailyMenu{}, apperr.Wrap(apperr.Storage, "get daily menu", err)
	}
	return row.toModel(), nil
}

// ListDailyMenusRange returns every menu between from and to inclusive.
func (s *Store) ListDailyMenusRange(ctx context.Context, from, to time.Time) ([]model.DailyMenu, error) {
	var rows []menuRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM daily_menus WHERE date >= ? AND date <= ? ORDER BY date`,
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list daily menus range", err)
	}
	out := make([]model.DailyMenu, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}
