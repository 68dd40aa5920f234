package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type bookingRow struct {
	UserID                string `db:"user_id"`
	Date                  string `db:"date"`
	Breakfast             bool   `db:"breakfast"`
	Snack                 bool   `db:"snack"`
	LunchKind             string `db:"lunch_kind"`
	DinnerKind            string `db:"dinner_kind"`
	LeavesUnitAfterDinner bool   `db:"leaves_unit_after_dinner"`
	CreatedAt             string `db:"created_at"`
	UpdatedAt             string `db:"updated_at"`
}

const dateLayout = "2006-01-02"

func (r bookingRow) toModel() model.Booking {
	d, _ := time.Parse(dateLayout, r.Date)
	b := model.Booking{
		UserID:                uuid.MustParse(r.UserID),
		Date:                  d,
		Breakfast:             r.Breakfast,
		Snack:                 r.Snack,
		LunchKind:             model.MealKind(r.LunchKind),
		DinnerKind:            model.MealKind(r.DinnerKind),
		LeavesUnitAfterDinner: r.LeavesUnitAfterDinner,
	}
	if t, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
		b.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, r.UpdatedAt); err == nil {
		b.UpdatedAt = t
	}
	return b
}

// GetBooking returns the booking row for (user, date), or apperr.NotFound.
func (s *Store) GetBooking(ctx context.Context, userID uuid.UUID, date time.Time) (model.Booking, error) {
	var row bookingRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM bookings WHERE user_id = ? AND date = ?`,
		userID.String(), date.Format(dateLayout))
	if isNoRows(err) {
		return model.Booking{}, apperr.New(apperr.NotFound, "no booking for date")
	}
	if err != nil {
		return model.Booking{}, apperr.Wrap(apperr.Storage, "get booking", err)
	}
	return row.toModel(), nil
}

// GetBookingTx is the transaction-bound counterpart of GetBooking, used by
// the Booking Service to read-then-write inside one write transaction.
func GetBookingTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, date time.Time) (model.Booking, bool, error) {
	var row bookingRow
	err := tx.GetContext(ctx, &row, `SELECT * FROM bookings WHERE user_id = ? AND date = ?`,
		userID.String(), date.Format(dateLayout))
	if isNoRows(err) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, apperr.Wrap(apperr.Storage, "get booking", err)
	}
	return row.toModel(), true, nil
}

// UpsertBookingTx inserts or updates the single row for (user, date).
func UpsertBookingTx(ctx context.Context, tx *sqlx.Tx, b model.Booking) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (user_id, date, breakfast, snack, lunch_kind, dinner_kind, leaves_unit_after_dinner)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			breakfast = excluded.breakfast,
			snack = excluded.snack,
			lunch_kind = excluded.lunch_kind,
			dinner_kind = excluded.dinner_kind,
			leaves_unit_after_dinner = excluded.leaves_unit_after_dinner`,
		b.UserID.String(), b.Date.Format(dateLayout), b.Breakfast, b.Snack,
		string(b.LunchKind), string(b.DinnerKind), b.LeavesUnitAfterDinner)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "upsert booking", err)
	}
	return nil
}

// ListBookingsForUserRange returns a user's bookings between from and to
// inclusive, ordered by date, for the self-service week view.
func (s *Store) ListBookingsForUserRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM bookings WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date`,
		userID.String(), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list bookings for user range", err)
	}
	out := make([]model.Booking, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// ListBookingsForDate returns every booking row for a single date.
func (s *Store) ListBookingsForDate(ctx context.Context, date time.Time) ([]model.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM bookings WHERE date = ?`, date.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list bookings for date", err)
	}
	out := make([]model.Booking, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// ListBookingsForDateAndYear returns bookings for a date restricted to
// users in the given curricular year.
func (s *Store) ListBookingsForDateAndYear(ctx context.Context, date time.Time, year int) ([]model.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT b.* FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.date = ? AND u.year = ?`, date.Format(dateLayout), year)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list bookings for date and year", err)
	}
	out := make([]model.Booking, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// BookingWithYear pairs a booking with its owner's curricular year, for the
// Aggregator's day_totals/roster paths which need year without a second
// round trip per user.
type BookingWithYear struct {
	model.Booking
	Year   int
	Active bool
}

// ListBookingsWithYear returns every booking for date joined with the
// owner's year and active flag.
func (s *Store) ListBookingsWithYear(ctx context.Context, date time.Time) ([]BookingWithYear, error) {
	type row struct {
		bookingRow
		Year   int  `db:"year"`
		Active bool `db:"active"`
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT b.*, u.year AS year, u.active AS active FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.date = ?`, date.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list bookings with year", err)
	}
	out := make([]BookingWithYear, len(rows))
	for i, r := range rows {
		out[i] = BookingWithYear{Booking: r.bookingRow.toModel(), Year: r.Year, Active: r.Active}
	}
	return out, nil
}

// InsertBookingLogTx writes one append-only field-change record inside the
// same write transaction as the mutation that produced it.
func InsertBookingLogTx(ctx context.Context, tx *sqlx.Tx, e model.BookingLogEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO booking_log (user_id, date, field, value_before, value_after, actor)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID.String(), e.Date.Format(dateLayout), e.Field, e.ValueBefore, e.ValueAfter, e.Actor)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "insert booking log", err)
	}
	return nil
}

// ListBookingLog returns a page of audit entries for a user, newest first.
func (s *Store) ListBookingLog(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.BookingLogEntry, error) {
	type row struct {
		ID          int64  `db:"id"`
		UserID      string `db:"user_id"`
		Date        string `db:"date"`
		Field       string `db:"field"`
		ValueBefore string `db:"value_before"`
		ValueAfter  string `db:"value_after"`
		Actor       string `db:"actor"`
		At          string `db:"at"`
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM booking_log WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		userID.String(), limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list booking log", err)
	}
	out := make([]model.BookingLogEntry, len(rows))
	for i, r := range rows {
		d, _ := time.Parse(dateLayout, r.Date)
		at, _ := time.Parse(time.RFC3339Nano, r.At)
		out[i] = model.BookingLogEntry{
			ID: r.ID, UserID: uuid.MustParse(r.UserID), Date: d,
			Field: r.Field, ValueBefore: r.ValueBefore, ValueAfter: r.ValueAfter,
			Actor: r.Actor, At: at,
		}
	}
	return out, nil
}
