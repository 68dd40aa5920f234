package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	nii TEXT NOT NULL UNIQUE,
	ni TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL,
	year INTEGER NOT NULL DEFAULT 0,
	role TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	must_change_password INTEGER NOT NULL DEFAULT 0,
	locked_until TEXT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS bookings (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	breakfast INTEGER NOT NULL DEFAULT 0,
	snack INTEGER NOT NULL DEFAULT 0,
	lunch_kind TEXT NOT NULL DEFAULT '',
	dinner_kind TEXT NOT NULL DEFAULT '',
	leaves_unit_after_dinner INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	PRIMARY KEY (user_id, date)
);
CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date);

CREATE TRIGGER IF NOT EXISTS trg_bookings_updated_at
AFTER UPDATE ON bookings
BEGIN
	UPDATE bookings SET updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
	WHERE user_id = NEW.user_id AND date = NEW.date;
END;

CREATE TABLE IF NOT EXISTS absences (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	from_date TEXT NOT NULL,
	to_date TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_absences_user ON absences(user_id);
CREATE INDEX IF NOT EXISTS idx_absences_range ON absences(from_date, to_date);

CREATE TABLE IF NOT EXISTS daily_menus (
	date TEXT PRIMARY KEY,
	breakfast TEXT,
	snack TEXT,
	lunch_normal TEXT,
	lunch_veg TEXT,
	lunch_diet TEXT,
	dinner_normal TEXT,
	dinner_veg TEXT,
	dinner_diet TEXT
);

CREATE TABLE IF NOT EXISTS meal_capacities (
	date TEXT NOT NULL,
	meal TEXT NOT NULL,
	max_total INTEGER NOT NULL DEFAULT -1,
	PRIMARY KEY (date, meal)
);

CREATE TABLE IF NOT EXISTS calendar_entries (
	date TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS booking_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	field TEXT NOT NULL,
	value_before TEXT NOT NULL,
	value_after TEXT NOT NULL,
	actor TEXT NOT NULL,
	at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_booking_log_user_date ON booking_log(user_id, date);

CREATE TABLE IF NOT EXISTS login_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nii TEXT NOT NULL,
	success INTEGER NOT NULL,
	ip TEXT NOT NULL DEFAULT '',
	at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_login_events_nii_at ON login_events(nii, at);

CREATE TABLE IF NOT EXISTS admin_audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS notifications_sent (
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	kind TEXT NOT NULL,
	sent_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	PRIMARY KEY (user_id, date, kind)
);
`

const ftsSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS users_fts USING fts5(
	full_name,
	content='users',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS trg_users_fts_insert AFTER INSERT ON users BEGIN
	INSERT INTO users_fts(rowid, full_name) VALUES (new.rowid, new.full_name);
END;
CREATE TRIGGER IF NOT EXISTS trg_users_fts_delete AFTER DELETE ON users BEGIN
	INSERT INTO users_fts(users_fts, rowid, full_name) VALUES ('delete', old.rowid, old.full_name);
END;
CREATE TRIGGER IF NOT EXISTS trg_users_fts_update AFTER UPDATE ON users BEGIN
	INSERT INTO users_fts(users_fts, rowid, full_name) VALUES ('delete', old.rowid, old.full_name);
	INSERT INTO users_fts(rowid, full_name) VALUES (new.rowid, new.full_name);
END;
`

// bootstrapSchema creates every table from the data model if absent and
// adds columns that a previous, older version of the schema may be
// missing, without any data loss. Running it twice is a no-op.
func (s *Store) bootstrapSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}
	if err := s.ensureUserColumns(ctx); err != nil {
		return fmt.Errorf("migrate users columns: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, ftsSQL); err != nil {
		return fmt.Errorf("create fts index: %w", err)
	}
	return nil
}

// ensureUserColumns adds email, phone, and active columns to users if an
// older schema lacks them, detected via table introspection rather than a
// version counter so this works no matter how old the file is.
func (s *Store) ensureUserColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(users)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return err
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	additions := []struct {
		column string
		ddl    string
	}{
		{"email", `ALTER TABLE users ADD COLUMN email TEXT`},
		{"phone", `ALTER TABLE users ADD COLUMN phone TEXT`},
		{"active", `ALTER TABLE users ADD COLUMN active INTEGER NOT NULL DEFAULT 1`},
	}
	for _, a := range additions {
		if present[a.column] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, a.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", a.column, err)
		}
		log.Info().Str("column", a.column).Msg("migrated users table")
	}
	return nil
}

// repairFTS verifies the full-text index is readable; if not, it drops and
// rebuilds it from the base table via the normal DDL path.
func (s *Store) repairFTS(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users_fts(users_fts) VALUES ('integrity-check')`)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("users_fts failed integrity check, rebuilding")

	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS users_fts`); err != nil {
		return fmt.Errorf("drop fts table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, ftsSQL); err != nil {
		return fmt.Errorf("recreate fts table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO users_fts(rowid, full_name) SELECT rowid, full_name FROM users`); err != nil {
		return fmt.Errorf("repopulate fts table: %w", err)
	}
	return nil
}
