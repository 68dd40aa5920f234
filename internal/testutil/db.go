// Package testutil provides a fresh schema-bootstrapped store per test
// function, backed by an in-memory SQLite database.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/navalmess/api/internal/auth"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
)

// NewStore opens an in-memory store with the full schema applied. The
// single-connection pool keeps the memory database alive for the test's
// lifetime.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// SeedUser creates a student (or other role) with the password equal to
// the NII, the same default the import path uses.
func SeedUser(t *testing.T, s *store.Store, nii string, year int, role model.Role) model.User {
	t.Helper()
	hash, err := auth.HashPassword(nii)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := model.User{
		ID:           uuid.New(),
		NII:          nii,
		NI:           "NI-" + nii,
		FullName:     "User " + nii,
		Year:         year,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", nii, err)
	}
	return u
}

// SeedBooking writes a booking row directly, bypassing the edit-window
// state machine, for tests that need pre-existing state.
func SeedBooking(t *testing.T, s *store.Store, b model.Booking) {
	t.Helper()
	err := s.Tx(context.Background(), store.Write, func(tx *sqlx.Tx) error {
		return store.UpsertBookingTx(context.Background(), tx, b)
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

// Date builds a UTC midnight instant for YYYY, MM, DD.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
