package store

import (
	"context"
	"time"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
)

// RecordLoginEvent appends one authentication attempt. Never deleted or
// updated; it is the basis for the per-NII lockout counter.
func (s *Store) RecordLoginEvent(ctx context.Context, nii string, success bool, ip string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO login_events (nii, success, ip) VALUES (?, ?, ?)`, nii, success, ip)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "record login event", err)
	}
	return nil
}

// ListLoginEvents returns a page of login attempts for nii, newest first.
func (s *Store) ListLoginEvents(ctx context.Context, nii string, limit, offset int) ([]model.LoginEvent, error) {
	type row struct {
		ID      int64  `db:"id"`
		NII     string `db:"nii"`
		Success bool   `db:"success"`
		IP      string `db:"ip"`
		At      string `db:"at"`
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM login_events WHERE nii = ? ORDER BY id DESC LIMIT ? OFFSET ?`, nii, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list login events", err)
	}
	out := make([]model.LoginEvent, len(rows))
	for i, r := range rows {
		at, _ := time.Parse(time.RFC3339Nano, r.At)
		out[i] = model.LoginEvent{ID: r.ID, NII: r.NII, Success: r.Success, IP: r.IP, At: at}
	}
	return out, nil
}

// RecordAdminAudit appends one administrative action record.
func (s *Store) RecordAdminAudit(ctx context.Context, actor, action, detail string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO admin_audit_log (actor, action, detail) VALUES (?, ?, ?)`, actor, action, detail)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "record admin audit", err)
	}
	return nil
}

// ListAdminAudit returns a page of admin audit entries, newest first.
func (s *Store) ListAdminAudit(ctx context.Context, limit, offset int) ([]model.AdminAuditEntry, error) {
	type row struct {
		ID     int64  `db:"id"`
		Actor  string `db:"actor"`
		Action string `db:"action"`
		Detail string `db:"detail"`
		At     string `db:"at"`
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM admin_audit_log ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "list admin audit", err)
	}
	out := make([]model.AdminAuditEntry, len(rows))
	for i, r := range rows {
		at, _ := time.Parse(time.RFC3339Nano, r.At)
		out[i] = model.AdminAuditEntry{ID: r.ID, Actor: r.Actor, Action: r.Action, Detail: r.Detail, At: at}
	}
	return out, nil
}
