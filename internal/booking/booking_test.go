package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/absence"
	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/booking"
	"github.com/navalmess/api/internal/calendar"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
	"github.com/navalmess/api/internal/testutil"
)

type fixture struct {
	store    *store.Store
	calendar *calendar.Service
	absences *absence.Service
	bookings *booking.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := testutil.NewStore(t)
	hours := 48
	cal := calendar.New(s, &hours)
	abs := absence.New(s)
	return &fixture{
		store:    s,
		calendar: cal,
		absences: abs,
		bookings: booking.New(s, cal, abs, 15),
	}
}

func selfEdit(u model.User, date, now time.Time, fields booking.Fields) booking.EditRequest {
	return booking.EditRequest{
		ActorID:   u.ID,
		ActorNII:  u.NII,
		ActorRole: u.Role,
		UserID:    u.ID,
		Date:      date,
		Fields:    fields,
		Now:       now,
	}
}

// 2026-03-01 is a Sunday; 2026-03-05 a Thursday.
var (
	now        = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	targetDate = testutil.Date(2026, time.March, 5)
)

func TestSelfEditWithinDeadline(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	result, err := f.bookings.Edit(context.Background(), selfEdit(stu, targetDate, now, booking.Fields{
		Breakfast: true,
		LunchKind: model.MealVegetarian,
	}))
	require.NoError(t, err)
	assert.True(t, result.Breakfast)
	assert.Equal(t, model.MealVegetarian, result.LunchKind)

	stored, err := f.store.GetBooking(context.Background(), stu.ID, targetDate)
	require.NoError(t, err)
	assert.True(t, stored.Breakfast)
	assert.Equal(t, model.MealVegetarian, stored.LunchKind)
	assert.Equal(t, model.MealNone, stored.DinnerKind)

	// One audit row per field changed from its default.
	entries, err := f.store.ListBookingLog(context.Background(), stu.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "stu1", e.Actor)
	}
}

func TestSelfEditPastDeadline(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	// Deadline for 03-05 with PRAZO=48 is 03-03 00:00; 03-04 02:00 is past it.
	late := time.Date(2026, time.March, 4, 2, 0, 0, 0, time.UTC)
	_, err := f.bookings.Edit(context.Background(), selfEdit(stu, targetDate, late, booking.Fields{
		LunchKind: model.MealNormal,
	}))
	assert.True(t, apperr.Is(err, apperr.DeadlineExpired))

	_, err = f.store.GetBooking(context.Background(), stu.ID, targetDate)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	entries, err := f.store.ListBookingLog(context.Background(), stu.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEditAtExactDeadlineRefused(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	deadline := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	_, err := f.bookings.Edit(context.Background(), selfEdit(stu, targetDate, deadline, booking.Fields{Snack: true}))
	assert.True(t, apperr.Is(err, apperr.DeadlineExpired))
}

func TestHorizonBoundary(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	// date - today = 15 is allowed (03-16 falls on a Monday).
	atHorizon := testutil.Date(2026, time.March, 16)
	_, err := f.bookings.Edit(context.Background(), selfEdit(stu, atHorizon, now, booking.Fields{Breakfast: true}))
	require.NoError(t, err)

	// date - today = 16 is refused.
	past := testutil.Date(2026, time.March, 17)
	_, err = f.bookings.Edit(context.Background(), selfEdit(stu, past, now, booking.Fields{Breakfast: true}))
	assert.True(t, apperr.Is(err, apperr.OutOfHorizon))

	// Yesterday is refused too.
	_, err = f.bookings.Edit(context.Background(), selfEdit(stu, testutil.Date(2026, time.February, 28), now, booking.Fields{Breakfast: true}))
	assert.True(t, apperr.Is(err, apperr.OutOfHorizon))
}

func TestClosedDayRefused(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	require.NoError(t, f.calendar.SetEntry(context.Background(), model.CalendarEntry{
		Date: targetDate, Kind: model.DayExercise,
	}))

	_, err := f.bookings.Edit(context.Background(), selfEdit(stu, targetDate, now, booking.Fields{Breakfast: true}))
	assert.True(t, apperr.Is(err, apperr.DateClosed))
}

func TestAbsentUserRefused(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	_, err := f.absences.Create(context.Background(), stu.ID, targetDate, targetDate, "leave", "stu1")
	require.NoError(t, err)

	_, err = f.bookings.Edit(context.Background(), selfEdit(stu, targetDate, now, booking.Fields{Breakfast: true}))
	assert.True(t, apperr.Is(err, apperr.UserAbsent))
}

func TestStaffOverridePastDeadline(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)
	officer := testutil.SeedUser(t, f.store, "oficial", 0, model.RoleDutyOfficer)

	late := time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC)
	result, err := f.bookings.Edit(context.Background(), booking.EditRequest{
		ActorID:   officer.ID,
		ActorNII:  officer.NII,
		ActorRole: officer.Role,
		UserID:    stu.ID,
		Date:      targetDate,
		Fields:    booking.Fields{DinnerKind: model.MealDiet},
		Override:  true,
		Now:       late,
	})
	require.NoError(t, err)
	assert.Equal(t, model.MealDiet, result.DinnerKind)

	entries, err := f.store.ListBookingLog(context.Background(), stu.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "oficial", entries[0].Actor)
	assert.Equal(t, "dinner_kind", entries[0].Field)
}

func TestStaffWithoutOverrideRefused(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)
	officer := testutil.SeedUser(t, f.store, "oficial", 0, model.RoleDutyOfficer)

	_, err := f.bookings.Edit(context.Background(), booking.EditRequest{
		ActorID:   officer.ID,
		ActorNII:  officer.NII,
		ActorRole: officer.Role,
		UserID:    stu.ID,
		Date:      targetDate,
		Fields:    booking.Fields{Breakfast: true},
		Now:       now,
	})
	assert.True(t, apperr.Is(err, apperr.NotAllowed))
}

func TestKitchenCannotWrite(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)
	kitchen := testutil.SeedUser(t, f.store, "cozinha", 0, model.RoleKitchen)

	_, err := f.bookings.Edit(context.Background(), booking.EditRequest{
		ActorID:   kitchen.ID,
		ActorNII:  kitchen.NII,
		ActorRole: kitchen.Role,
		UserID:    stu.ID,
		Date:      targetDate,
		Fields:    booking.Fields{Breakfast: true},
		Override:  true,
		Now:       now,
	})
	assert.True(t, apperr.Is(err, apperr.NotAllowed))
}

func TestCapacityLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stu1 := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)
	stu2 := testutil.SeedUser(t, f.store, "stu2", 2, model.RoleStudent)
	stu3 := testutil.SeedUser(t, f.store, "stu3", 2, model.RoleStudent)

	require.NoError(t, f.store.SetMealCapacity(ctx, model.MealCapacity{
		Date: targetDate, Meal: model.MealLunch, MaxTotal: 2,
	}))
	testutil.SeedBooking(t, f.store, model.Booking{UserID: stu1.ID, Date: targetDate, LunchKind: model.MealNormal})
	testutil.SeedBooking(t, f.store, model.Booking{UserID: stu2.ID, Date: targetDate, LunchKind: model.MealNormal})

	_, err := f.bookings.Edit(ctx, selfEdit(stu3, targetDate, now, booking.Fields{LunchKind: model.MealNormal}))
	assert.True(t, apperr.Is(err, apperr.CapacityExceeded))

	_, err = f.store.GetBooking(ctx, stu3.ID, targetDate)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCapacityNetDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stu1 := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)
	stu2 := testutil.SeedUser(t, f.store, "stu2", 2, model.RoleStudent)

	require.NoError(t, f.store.SetMealCapacity(ctx, model.MealCapacity{
		Date: targetDate, Meal: model.MealLunch, MaxTotal: 2,
	}))
	testutil.SeedBooking(t, f.store, model.Booking{UserID: stu1.ID, Date: targetDate, LunchKind: model.MealNormal})
	testutil.SeedBooking(t, f.store, model.Booking{UserID: stu2.ID, Date: targetDate, LunchKind: model.MealNormal})

	// Normal -> Vegetarian does not move the lunch counter, so it passes
	// even with the cap already reached.
	result, err := f.bookings.Edit(ctx, selfEdit(stu1, targetDate, now, booking.Fields{LunchKind: model.MealVegetarian}))
	require.NoError(t, err)
	assert.Equal(t, model.MealVegetarian, result.LunchKind)

	// And the audit records exactly one field change.
	entries, err := f.store.ListBookingLog(ctx, stu1.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "lunch_kind", entries[0].Field)
	assert.Equal(t, "normal", entries[0].ValueBefore)
	assert.Equal(t, "vegetarian", entries[0].ValueAfter)
}

func TestStaffOverrideStillCapacityChecked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stu1 := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)
	stu2 := testutil.SeedUser(t, f.store, "stu2", 2, model.RoleStudent)
	officer := testutil.SeedUser(t, f.store, "oficial", 0, model.RoleDutyOfficer)

	require.NoError(t, f.store.SetMealCapacity(ctx, model.MealCapacity{
		Date: targetDate, Meal: model.MealDinner, MaxTotal: 1,
	}))
	testutil.SeedBooking(t, f.store, model.Booking{UserID: stu1.ID, Date: targetDate, DinnerKind: model.MealNormal})

	_, err := f.bookings.Edit(ctx, booking.EditRequest{
		ActorID:   officer.ID,
		ActorNII:  officer.NII,
		ActorRole: officer.Role,
		UserID:    stu2.ID,
		Date:      targetDate,
		Fields:    booking.Fields{DinnerKind: model.MealNormal},
		Override:  true,
		Now:       now,
	})
	assert.True(t, apperr.Is(err, apperr.CapacityExceeded))
}

func TestIdempotentWriteProducesNoAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	fields := booking.Fields{Breakfast: true, LunchKind: model.MealNormal}
	_, err := f.bookings.Edit(ctx, selfEdit(stu, targetDate, now, fields))
	require.NoError(t, err)
	_, err = f.bookings.Edit(ctx, selfEdit(stu, targetDate, now, fields))
	require.NoError(t, err)

	entries, err := f.store.ListBookingLog(ctx, stu.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // only the first write changed anything
}

func TestEmptyBookingIsValid(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	result, err := f.bookings.Edit(context.Background(), selfEdit(stu, targetDate, now, booking.Fields{}))
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

func TestInvalidMealKindRejected(t *testing.T) {
	f := newFixture(t)
	stu := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)

	_, err := f.bookings.Edit(context.Background(), selfEdit(stu, targetDate, now, booking.Fields{
		LunchKind: model.MealKind("raw"),
	}))
	assert.True(t, apperr.Is(err, apperr.BadInput))
}
