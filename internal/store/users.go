package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

type userRow struct {
	ID                 string         `db:"id"`
	NII                string         `db:"nii"`
	NI                 string         `db:"ni"`
	FullName           string         `db:"full_name"`
	Year               int            `db:"year"`
	Role               string         `db:"role"`
	PasswordHash       string         `db:"password_hash"`
	MustChangePassword bool           `db:"must_change_password"`
	LockedUntil        sql.NullString `db:"locked_until"`
	Email              sql.NullString `db:"email"`
	Phone              sql.NullString `db:"phone"`
	Active             bool           `db:"active"`
	CreatedAt          string         `db:"created_at"`
	UpdatedAt          string         `db:"updated_at"`
}

func (r userRow) toModel() (model.User, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:                 id,
		NII:                r.NII,
		NI:                 r.NI,
		FullName:           r.FullName,
		Year:               r.Year,
		Role:               model.Role(r.Role),
		PasswordHash:       r.PasswordHash,
		MustChangePassword: r.MustChangePassword,
		Active:             r.Active,
	}
	if r.LockedUntil.Valid {
		t, err := time.Parse(time.RFC3339Nano, r.LockedUntil.String)
		if err == nil {
			u.LockedUntil = &t
		}
	}
	if r.Email.Valid {
		u.Email = &r.Email.String
	}
	if r.Phone.Valid {
		u.Phone = &r.Phone.String
	}
	if t, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
		u.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, r.UpdatedAt); err == nil {
		u.UpdatedAt = t
	}
	return u, nil
}

// CreateUser inserts a new user. Returns apperr.Conflict if the NII is
// already taken.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		return insertUser(ctx, tx, u)
	})
}

func insertUser(ctx context.Context, tx *sqlx.Tx, u model.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, nii, ni, full_name, year, role, password_hash, must_change_password, email, phone, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.NII, u.NI, u.FullName, u.Year, string(u.Role), u.PasswordHash, u.MustChangePassword, u.Email, u.Phone, u.Active)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, fmt.Sprintf("NII %q already exists", u.NII))
	}
	if err != nil {
		return apperr.Wrap(apperr.Storage, "insert user", err)
	}
	return nil
}

// GetUserByID looks up a user by internal id.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = ?`, id.String())
	if isNoRows(err) {
		return model.User{}, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.Storage, "get user", err)
	}
	return row.toModel()
}

// GetUserByNII looks up a user by their login identifier.
func (s *Store) GetUserByNII(ctx context.Context, nii string) (model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE nii = ?`, nii)
	if isNoRows(err) {
		return model.User{}, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.Storage, "get user by nii", err)
	}
	return row.toModel()
}

// ListUsersByYear returns all active users in the given curricular year.
func (s *Store) ListUsersByYear(ctx context.Context, year int) ([]model.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM users WHERE year = ? AND active = 1 ORDER BY full_name`, year)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list users by year", err)
	}
	return toUsers(rows)
}

// ListUsers returns every user, active or not, ordered by year then name.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM users ORDER BY year, full_name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list users", err)
	}
	return toUsers(rows)
}

// SearchUsersByName performs a full-text search over full_name.
func (s *Store) SearchUsersByName(ctx context.Context, query string) ([]model.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.* FROM users u
		JOIN users_fts f ON f.rowid = u.rowid
		WHERE users_fts MATCH ?
		ORDER BY rank`, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "search users", err)
	}
	return toUsers(rows)
}

func toUsers(rows []userRow) ([]model.User, error) {
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		u, err := r.toModel()
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// UpdateUserContacts updates a user's self-editable contact fields.
func (s *Store) UpdateUserContacts(ctx context.Context, id uuid.UUID, email, phone *string) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE users SET email = ?, phone = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE id = ?`,
			email, phone, id.String())
		if err != nil {
			return apperr.Wrap(apperr.Storage, "update user contacts", err)
		}
		return nil
	})
}

// UpdateUser replaces the admin-editable fields of a user. The NII and
// password are immutable through this path.
func (s *Store) UpdateUser(ctx context.Context, u model.User) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET ni = ?, full_name = ?, year = ?, role = ?, email = ?, phone = ?, active = ?,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE id = ?`,
			u.NI, u.FullName, u.Year, string(u.Role), u.Email, u.Phone, u.Active, u.ID.String())
		if err != nil {
			return apperr.Wrap(apperr.Storage, "update user", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return nil
	})
}

// PromoteYears applies a year-transition policy to every user in one write
// transaction, using a single CASE expression so users promoted into a
// year are not promoted again by a later rule.
func (s *Store) PromoteYears(ctx context.Context, policy map[int]int) (int64, error) {
	if len(policy) == 0 {
		return 0, nil
	}
	froms := make([]int, 0, len(policy))
	for from := range policy {
		froms = append(froms, from)
	}
	sort.Ints(froms)

	var caseSQL, inSQL strings.Builder
	caseSQL.WriteString("CASE year")
	for i, from := range froms {
		fmt.Fprintf(&caseSQL, " WHEN %d THEN %d", from, policy[from])
		if i > 0 {
			inSQL.WriteString(",")
		}
		fmt.Fprintf(&inSQL, "%d", from)
	}
	caseSQL.WriteString(" ELSE year END")

	var affected int64
	err := s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE users SET year = %s, updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ','now') WHERE year IN (%s)`,
			caseSQL.String(), inSQL.String()))
		if err != nil {
			return apperr.Wrap(apperr.Storage, "promote years", err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

// UpdateUserPassword sets a new password hash and clears or sets the
// must-change-password flag.
func (s *Store) UpdateUserPassword(ctx context.Context, id uuid.UUID, hash string, mustChange bool) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = ?, must_change_password = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE id = ?`,
			hash, mustChange, id.String())
		if err != nil {
			return apperr.Wrap(apperr.Storage, "update user password", err)
		}
		return nil
	})
}

// SetUserLockedUntil sets or clears (nil) the account lockout instant.
func (s *Store) SetUserLockedUntil(ctx context.Context, id uuid.UUID, until *time.Time) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		var val any
		if until != nil {
			val = until.UTC().Format(time.RFC3339Nano)
		}
		_, err := tx.ExecContext(ctx, `UPDATE users SET locked_until = ? WHERE id = ?`, val, id.String())
		if err != nil {
			return apperr.Wrap(apperr.Storage, "set locked_until", err)
		}
		return nil
	})
}

// UpdateUserYear advances or sets a user's curricular year (promotion).
func (s *Store) UpdateUserYear(ctx context.Context, id uuid.UUID, year int) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE users SET year = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now') WHERE id = ?`, year, id.String())
		if err != nil {
			return apperr.Wrap(apperr.Storage, "update user year", err)
		}
		return nil
	})
}

// DeleteUser removes a user and cascades their bookings, absences, and
// pending notifications. Append-only logs are retained; they refer to the
// user by NII string.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.Tx(ctx, Write, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
		if err != nil {
			return apperr.Wrap(apperr.Storage, "delete user", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.New(apperr.NotFound, "user not found")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notifications_sent WHERE user_id = ?`, id.String()); err != nil {
			return apperr.Wrap(apperr.Storage, "delete user notifications", err)
		}
		return nil
	})
}

// CountUsersByRole counts users with the given role, active or not, used by the
// fallback-admin check (only honoured when no DB admin exists).
func (s *Store) CountUsersByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role))
	if err != nil {
		return 0, apperr.Wrap(apperr.Storage, "count users by role", err)
	}
	return n, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure. modernc.org/sqlite has no typed sentinel for this (unlike
// pq/pgx), so we match on the driver's error text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
