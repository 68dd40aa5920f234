package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
	"github.com/navalmess/api/internal/testutil"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mess.db")

	s1, err := store.Open(path)
	require.NoError(t, err)
	u := testutil.SeedUser(t, s1, "123456", 1, model.RoleStudent)
	require.NoError(t, s1.Close())

	// Re-opening the same file re-runs the bootstrap; nothing is lost.
	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "123456", got.NII)
}

func TestUserNIIUnique(t *testing.T) {
	s := testutil.NewStore(t)
	testutil.SeedUser(t, s, "123456", 1, model.RoleStudent)

	err := s.CreateUser(context.Background(), model.User{
		ID: uuid.New(), NII: "123456", FullName: "Dup", Role: model.RoleStudent, PasswordHash: "x", Active: true,
	})
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestFullTextSearchFollowsUserLifecycle(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, s, "123456", 1, model.RoleStudent)

	// The seeded full name is "User 123456"; search by its numeric token.
	found, err := s.SearchUsersByName(ctx, "123456")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, u.ID, found[0].ID)

	u.FullName = "Maria Santos"
	require.NoError(t, s.UpdateUser(ctx, u))
	found, err = s.SearchUsersByName(ctx, "Santos")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, u.ID, found[0].ID)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	found, err = s.SearchUsersByName(ctx, "Santos")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestBookingUpdatedAtTrigger(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, s, "123456", 1, model.RoleStudent)
	date := testutil.Date(2026, time.March, 5)

	testutil.SeedBooking(t, s, model.Booking{UserID: u.ID, Date: date, Breakfast: true})
	first, err := s.GetBooking(ctx, u.ID, date)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	testutil.SeedBooking(t, s, model.Booking{UserID: u.ID, Date: date, Breakfast: true, Snack: true})
	second, err := s.GetBooking(ctx, u.ID, date)
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestMarkNotificationSentAtMostOnce(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, s, "123456", 1, model.RoleStudent)
	date := testutil.Date(2026, time.March, 5)

	inserted, err := s.MarkNotificationSent(ctx, u.ID, date, model.NotificationDeadline)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.MarkNotificationSent(ctx, u.ID, date, model.NotificationDeadline)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestMealCapacityDefaultsUnbounded(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	date := testutil.Date(2026, time.March, 5)

	cap, err := s.GetMealCapacity(ctx, date, model.MealLunch)
	require.NoError(t, err)
	assert.True(t, cap.Unbounded())

	require.NoError(t, s.SetMealCapacity(ctx, model.MealCapacity{Date: date, Meal: model.MealLunch, MaxTotal: 120}))
	cap, err = s.GetMealCapacity(ctx, date, model.MealLunch)
	require.NoError(t, err)
	assert.Equal(t, 120, cap.MaxTotal)

	// A negative value removes the cap again.
	require.NoError(t, s.SetMealCapacity(ctx, model.MealCapacity{Date: date, Meal: model.MealLunch, MaxTotal: -1}))
	cap, err = s.GetMealCapacity(ctx, date, model.MealLunch)
	require.NoError(t, err)
	assert.True(t, cap.Unbounded())
}
