package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

// MarkNotificationSent records a (user, date, kind) delivery. It is a no-op
// if that triple was already recorded, giving the Notification Scheduler
// its at-most-once guarantee without a separate existence check.
func (s *Store) MarkNotificationSent(ctx context.Context, userID uuid.UUID, date time.Time, kind model.NotificationKind) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notifications_sent (user_id, date, kind) VALUES (?, ?, ?)`,
		userID.String(), date.Format(dateLayout), string(kind))
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "mark notification sent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "mark notification sent rows affected", err)
	}
	return n > 0, nil
}

// WasNotificationSent reports whether (user, date, kind) was already
// delivered.
func (s *Store) WasNotificationSent(ctx context.Context, userID uuid.UUID, date time.Time, kind model.NotificationKind) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM notifications_sent WHERE user_id = ? AND date = ? AND kind = ?`,
		userID.String(), date.Format(dateLayout), string(kind))
	if err != nil {
		return false, apperr.Wrap(apperr.Storage, "was notification sent", err)
	}
	return n > 0, nil
}

// DeadlineNotificationCandidates returns the active users who hold a
// booking with at least one field set for date, have not yet received a
// deadline warning for it, and are not absent on it — the scheduler tick's
// query for who to warn.
func (s *Store) DeadlineNotificationCandidates(ctx context.Context, date time.Time) ([]model.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.* FROM users u
		JOIN bookings b ON b.user_id = u.id AND b.date = ?
		WHERE u.active = 1
		AND (b.breakfast = 1 OR b.snack = 1 OR b.lunch_kind != '' OR b.dinner_kind != '' OR b.leaves_unit_after_dinner = 1)
		AND NOT EXISTS (
			SELECT 1 FROM notifications_sent n
			WHERE n.user_id = u.id AND n.date = ? AND n.kind = ?
		)
		AND NOT EXISTS (
			SELECT 1 FROM absences a
			WHERE a.user_id = u.id AND a.from_date <= ? AND a.to_date >= ?
		)`,
		date.Format(dateLayout), date.Format(dateLayout), string(model.NotificationDeadline),
		date.Format(dateLayout), date.Format(dateLayout))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "deadline notification candidates", err)
	}
	return toUsers(rows)
}
