package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/calendar"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/testutil"
)

func TestClassifyDefaults(t *testing.T) {
	s := testutil.NewStore(t)
	hours := 48
	svc := calendar.New(s, &hours)
	ctx := context.Background()

	// 2026-03-07 is a Saturday, 2026-03-09 a Monday.
	kind, err := svc.Classify(ctx, testutil.Date(2026, time.March, 7))
	require.NoError(t, err)
	assert.Equal(t, model.DayWeekend, kind)

	kind, err = svc.Classify(ctx, testutil.Date(2026, time.March, 9))
	require.NoError(t, err)
	assert.Equal(t, model.DayNormal, kind)
}

func TestClassifyExplicitEntryWins(t *testing.T) {
	s := testutil.NewStore(t)
	hours := 48
	svc := calendar.New(s, &hours)
	ctx := context.Background()
	date := testutil.Date(2026, time.March, 9)

	require.NoError(t, svc.SetEntry(ctx, model.CalendarEntry{Date: date, Kind: model.DayHoliday, Note: "Carnival"}))
	kind, err := svc.Classify(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, model.DayHoliday, kind)
	assert.True(t, kind.Closed())

	require.NoError(t, svc.DeleteEntry(ctx, date))
	kind, err = svc.Classify(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, model.DayNormal, kind)
}

func TestClassifyRange(t *testing.T) {
	s := testutil.NewStore(t)
	hours := 48
	svc := calendar.New(s, &hours)
	ctx := context.Background()

	monday := testutil.Date(2026, time.March, 9)
	require.NoError(t, svc.SetEntry(ctx, model.CalendarEntry{Date: monday.AddDate(0, 0, 2), Kind: model.DayExercise}))

	kinds, err := svc.ClassifyRange(ctx, monday, monday.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Len(t, kinds, 7)
	assert.Equal(t, model.DayNormal, kinds["2026-03-09"])
	assert.Equal(t, model.DayExercise, kinds["2026-03-11"])
	assert.Equal(t, model.DayWeekend, kinds["2026-03-14"])
	assert.Equal(t, model.DayWeekend, kinds["2026-03-15"])
}

func TestDeadlineFor(t *testing.T) {
	s := testutil.NewStore(t)
	hours := 48
	svc := calendar.New(s, &hours)

	deadline, ok := svc.DeadlineFor(testutil.Date(2026, time.March, 5))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), deadline)
}

func TestNoDeadlineConfigured(t *testing.T) {
	s := testutil.NewStore(t)
	svc := calendar.New(s, nil)

	_, ok := svc.DeadlineFor(testutil.Date(2026, time.March, 5))
	assert.False(t, ok)
}
