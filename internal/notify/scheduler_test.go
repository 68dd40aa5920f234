package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/calendar"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/notify"
	"github.com/navalmess/api/internal/store"
	"github.com/navalmess/api/internal/testutil"
)

// fakeChannel pretends to be the email channel and records every delivery.
type fakeChannel struct {
	sent chan string
}

func (c *fakeChannel) Name() string { return "email" }

func (c *fakeChannel) Send(_ context.Context, to, _, _ string) bool {
	c.sent <- to
	return true
}

type fixture struct {
	store     *store.Store
	calendar  *calendar.Service
	scheduler *notify.Scheduler
	channel   *fakeChannel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := testutil.NewStore(t)
	hours := 48
	cal := calendar.New(s, &hours)
	ch := &fakeChannel{sent: make(chan string, 16)}
	sched := notify.NewScheduler(s, cal, []notify.Channel{ch}, 15, 24, 3600, zerolog.Nop())
	return &fixture{store: s, calendar: cal, scheduler: sched, channel: ch}
}

// now is a Sunday morning; warnDate's deadline (2026-03-02 00:00 with
// PRAZO=48) is within the 24h warning window.
var (
	now      = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	warnDate = testutil.Date(2026, time.March, 4)
)

func seedCandidate(t *testing.T, f *fixture, nii string) model.User {
	t.Helper()
	u := testutil.SeedUser(t, f.store, nii, 2, model.RoleStudent)
	email := nii + "@academy.example"
	require.NoError(t, f.store.UpdateUserContacts(context.Background(), u.ID, &email, nil))
	testutil.SeedBooking(t, f.store, model.Booking{UserID: u.ID, Date: warnDate, LunchKind: model.MealNormal})
	return u
}

func waitSend(t *testing.T, f *fixture) string {
	t.Helper()
	select {
	case to := <-f.channel.sent:
		return to
	case <-time.After(2 * time.Second):
		t.Fatal("expected a delivery")
		return ""
	}
}

func assertNoSend(t *testing.T, f *fixture) {
	t.Helper()
	select {
	case to := <-f.channel.sent:
		t.Fatalf("unexpected delivery to %s", to)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWarningDeliveredAtMostOnce(t *testing.T) {
	f := newFixture(t)
	u := seedCandidate(t, f, "stu1")
	ctx := context.Background()

	require.NoError(t, f.scheduler.Scan(ctx, now))
	assert.Equal(t, "stu1@academy.example", waitSend(t, f))

	sent, err := f.store.WasNotificationSent(ctx, u.ID, warnDate, model.NotificationDeadline)
	require.NoError(t, err)
	assert.True(t, sent)

	// A second scan inside the same window delivers nothing new.
	require.NoError(t, f.scheduler.Scan(ctx, now.Add(time.Hour)))
	assertNoSend(t, f)
}

func TestOutsideWarningWindowNotWarned(t *testing.T) {
	f := newFixture(t)
	seedCandidate(t, f, "stu1")

	// Two days earlier, before warnDate's warning window opens, nothing fires.
	early := now.AddDate(0, 0, -2)
	require.NoError(t, f.scheduler.Scan(context.Background(), early))
	assertNoSend(t, f)
}

func TestClosedDayNotWarned(t *testing.T) {
	f := newFixture(t)
	u := seedCandidate(t, f, "stu1")
	ctx := context.Background()

	require.NoError(t, f.calendar.SetEntry(ctx, model.CalendarEntry{Date: warnDate, Kind: model.DayExercise}))

	require.NoError(t, f.scheduler.Scan(ctx, now))
	assertNoSend(t, f)

	sent, err := f.store.WasNotificationSent(ctx, u.ID, warnDate, model.NotificationDeadline)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestEmptyBookingNotWarned(t *testing.T) {
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "stu1", 2, model.RoleStudent)
	email := "stu1@academy.example"
	require.NoError(t, f.store.UpdateUserContacts(context.Background(), u.ID, &email, nil))
	testutil.SeedBooking(t, f.store, model.Booking{UserID: u.ID, Date: warnDate})

	require.NoError(t, f.scheduler.Scan(context.Background(), now))
	assertNoSend(t, f)
}

func TestAbsentUserNotWarned(t *testing.T) {
	f := newFixture(t)
	u := seedCandidate(t, f, "stu1")
	ctx := context.Background()

	_, err := f.store.CreateAbsence(ctx, model.Absence{
		UserID: u.ID, FromDate: warnDate, ToDate: warnDate,
	})
	require.NoError(t, err)

	require.NoError(t, f.scheduler.Scan(ctx, now))
	assertNoSend(t, f)
}

func TestMarkedEvenWhenDeliveryFails(t *testing.T) {
	s := testutil.NewStore(t)
	hours := 48
	cal := calendar.New(s, &hours)
	// No channels configured: delivery always fails, but the sent marker
	// still lands so a misconfigured channel is not spammed later.
	sched := notify.NewScheduler(s, cal, nil, 15, 24, 3600, zerolog.Nop())

	u := testutil.SeedUser(t, s, "stu1", 2, model.RoleStudent)
	testutil.SeedBooking(t, s, model.Booking{UserID: u.ID, Date: warnDate, Breakfast: true})
	ctx := context.Background()

	require.NoError(t, sched.Scan(ctx, now))
	sent, err := s.WasNotificationSent(ctx, u.ID, warnDate, model.NotificationDeadline)
	require.NoError(t, err)
	assert.True(t, sent)
}
