package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type absenceRow struct {
	ID        int64  `db:"id"`
	UserID    string `db:"user_id"`
	FromDate  string `db:"from_date"`
	ToDate    string `db:"to_date"`
	Reason    string `db:"reason"`
	Author    string `db:"author"`
	CreatedAt string `db:"created_at"`
}

func (r absenceRow) toModel() model.Absence {
	from, _ := time.Parse(dateLayout, r.FromDate)
	to, _ := time.Parse(dateLayout, r.ToDate)
	createdAt, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	return model.Absence{
		ID: r.ID, UserID: uuid.MustParse(r.UserID),
		FromDate: from, ToDate: to, Reason: r.Reason, Author: r.Author, CreatedAt: createdAt,
	}
}

// CreateAbsence inserts a new absence row.
func (s *Store) CreateAbsence(ctx context.Context, a model.Absence) (model.Absence, error) {
	var out model.Absence
	err := s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO absences (user_id, from_date, to_date, reason, author)
			VALUES (?, ?, ?, ?, ?)`,
			a.UserID.String(), a.FromDate.Format(dateLayout), a.ToDate.Format(dateLayout), a.Reason, a.Author)
		if err != nil {
			return apperr.Wrap(apperr.Storage, "insert absence", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return apperr.Wrap(apperr.Storage, "read absence id", err)
		}
		a.ID = id
		out = a
		return nil
	})
	return out, err
}

// DeleteAbsence removes an absence by id, returning apperr.NotFound if
// absent. Ownership/role authorization is the caller's responsibility.
func (s *Store) DeleteAbsence(ctx context.Context, id int64) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM absences WHERE id = ?`, id)
		if err != nil {
			return apperr.Wrap(apperr.Storage, "delete absence", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.New(apperr.NotFound, "absence not found")
		}
		return nil
	})
}

// GetAbsence looks up a single absence by id.
func (s *Store) GetAbsence(ctx context.Context, id int64) (model.Absence, error) {
	var row absenceRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM absences WHERE id = ?`, id)
	if isNoRows(err) {
		return model.Absence{}, apperr.New(apperr.NotFound, "absence not found")
	}
	if err != nil {
		return model.Absence{}, apperr.Wrap(apperr.Storage, "get absence", err)
	}
	return row.toModel(), nil
}

// IsAbsent reports whether any absence row for the user covers date.
func (s *Store) IsAbsent(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM absences
		WHERE user_id = ? AND from_date <= ? AND to_date >= ?`,
		userID.String(), date.Format(dateLayout), date.Format(dateLayout))
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "is absent", err)
	}
	return n > 0, nil
}

// IsAbsentTx is the transaction-bound counterpart of IsAbsent.
func IsAbsentTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, date time.Time) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM absences
		WHERE user_id = ? AND from_date <= ? AND to_date >= ?`,
		userID.String(), date.Format(dateLayout), date.Format(dateLayout))
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "is absent", err)
	}
	return n > 0, nil
}

// AbsentUserIDsForDate returns the set of user ids with an absence active
// on date, for the Aggregator's bulk exclusion path.
func (s *Store) AbsentUserIDsForDate(ctx context.Context, date time.Time) (map[uuid.UUID]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT user_id FROM absences WHERE from_date <= ? AND to_date >= ?`,
		date.Format(dateLayout), date.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "absent user ids for date", err)
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[uuid.MustParse(id)] = true
	}
	return out, nil
}

// ListAbsencesForUser lists all absences for a user, newest first.
func (s *Store) ListAbsencesForUser(ctx context.Context, userID uuid.UUID) ([]model.Absence, error) {
	var rows []absenceRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM absences WHERE user_id = ? ORDER BY from_date DESC`, userID.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list absences for user", err)
	}
	out := make([]model.Absence, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}
