package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type calendarRow struct {
	Date string `db:"date"`
	Kind string `db:"kind"`
	Note string `db:"note"`
}

func (r calendarRow) toModel() model.CalendarEntry {
	d, _ := time.Parse(dateLayout, r.Date)
	return model.CalendarEntry{Date: d, Kind: model.DayKind(r.Kind), Note: r.Note}
}

// UpsertCalendarEntry creates or replaces the admin-authored classification
// for a single date.
func (s *Store) UpsertCalendarEntry(ctx context.Context, e model.CalendarEntry) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calendar_entries (date, kind, note) VALUES (?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET kind = excluded.kind, note = excluded.note`,
			e.Date.Format(dateLayout), string(e.Kind), e.Note)
		if err != nil {
			return apperr.Wrap(apperr.Storage, "upsert calendar entry", err)
		}
		return nil
	})
}

// GetCalendarEntry returns the admin override for a date, or
// apperr.NotFound if the date has no explicit entry (the Calendar Service
// falls back to the weekend default in that case).
func (s *Store) GetCalendarEntry(ctx context.Context, date time.Time) (model.CalendarEntry, error) {
	var row calendarRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM calendar_entries WHERE date = ?`, date.Format(dateLayout))
	if isNoRows(err) {
		return model.CalendarEntry{}, apperr.New(apperr.NotFound, "no calendar entry for date")
	}
	if err != nil {
		return model.CalendarEntry{}, apperr.Wrap(apperr.Storage, "get calendar entry", err)
	}
	return row.toModel(), nil
}

// ListCalendarEntriesRange returns every explicit entry between from and to
// inclusive, keyed by date for O(1) lookup during range classification.
func (s *Store) ListCalendarEntriesRange(ctx context.Context, from, to time.Time) (map[string]model.CalendarEntry, error) {
	var rows []calendarRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM calendar_entries WHERE date >= ? AND date <= ?`,
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list calendar entries range", err)
	}
	out := make(map[string]model.CalendarEntry, len(rows))
	for _, r := range rows {
		out[r.Date] = r.toModel()
	}
	return out, nil
}

// DeleteCalendarEntry removes an admin override, reverting the date to the
// weekend-default classification.
func (s *Store) DeleteCalendarEntry(ctx context.Context, date time.Time) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM calendar_entries WHERE date = ?`, date.Format(dateLayout))
		if err != nil {
			return apperr.Wrap(apperr.Storage, "delete calendar entry", err)
		}
		return nil
	})
}
