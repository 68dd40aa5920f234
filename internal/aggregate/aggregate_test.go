package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/absence"
	"github.com/navalmess/api/internal/aggregate"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/testutil"
)

var date = testutil.Date(2026, time.March, 5)

func TestDayTotals(t *testing.T) {
	s := testutil.NewStore(t)
	svc := aggregate.New(s)
	ctx := context.Background()

	stu1 := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)
	stu2 := testutil.SeedUser(t, s, "stu2", 2, model.RoleStudent)
	stu3 := testutil.SeedUser(t, s, "stu3", 2, model.RoleStudent)

	testutil.SeedBooking(t, s, model.Booking{
		UserID: stu1.ID, Date: date,
		Breakfast: true, LunchKind: model.MealNormal, DinnerKind: model.MealNormal, LeavesUnitAfterDinner: true,
	})
	testutil.SeedBooking(t, s, model.Booking{
		UserID: stu2.ID, Date: date,
		Snack: true, LunchKind: model.MealVegetarian,
	})
	testutil.SeedBooking(t, s, model.Booking{
		UserID: stu3.ID, Date: date,
		LunchKind: model.MealDiet, DinnerKind: model.MealDiet,
	})

	totals, err := svc.DayTotals(ctx, date, nil)
	require.NoError(t, err)
	assert.Equal(t, model.DayTotals{
		Breakfast:     1,
		Snack:         1,
		LunchNormal:   1,
		LunchVeg:      1,
		LunchDiet:     1,
		DinnerNormal:  1,
		DinnerDiet:    1,
		DinnerLeavers: 1,
	}, totals)
}

func TestDayTotalsPartitionByYear(t *testing.T) {
	s := testutil.NewStore(t)
	svc := aggregate.New(s)
	ctx := context.Background()

	stu1 := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)
	stu2 := testutil.SeedUser(t, s, "stu2", 2, model.RoleStudent)
	testutil.SeedBooking(t, s, model.Booking{UserID: stu1.ID, Date: date, LunchKind: model.MealNormal})
	testutil.SeedBooking(t, s, model.Booking{UserID: stu2.ID, Date: date, LunchKind: model.MealNormal})

	all, err := svc.DayTotals(ctx, date, nil)
	require.NoError(t, err)

	var sum model.DayTotals
	for _, year := range []int{1, 2, 3, 4, 5, 6} {
		y := year
		part, err := svc.DayTotals(ctx, date, &y)
		require.NoError(t, err)
		sum.LunchNormal += part.LunchNormal
	}
	assert.Equal(t, all.LunchNormal, sum.LunchNormal)
}

func TestAbsenceExcludesFromTotals(t *testing.T) {
	s := testutil.NewStore(t)
	svc := aggregate.New(s)
	absences := absence.New(s)
	ctx := context.Background()

	stu1 := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)
	testutil.SeedBooking(t, s, model.Booking{UserID: stu1.ID, Date: date, LunchKind: model.MealNormal})

	before, err := svc.DayTotals(ctx, date, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, before.LunchNormal)

	_, err = absences.Create(ctx, stu1.ID, date, date, "leave", "cmd1")
	require.NoError(t, err)

	after, err := svc.DayTotals(ctx, date, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, after.LunchNormal)

	// The booking row itself survives.
	_, err = s.GetBooking(ctx, stu1.ID, date)
	require.NoError(t, err)

	// And occupancy drops with it.
	occ, err := s.Occupancy(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 0, occ[model.MealLunch])
}

func TestYearZeroExcluded(t *testing.T) {
	s := testutil.NewStore(t)
	svc := aggregate.New(s)
	ctx := context.Background()

	concluded := testutil.SeedUser(t, s, "old1", 0, model.RoleStudent)
	testutil.SeedBooking(t, s, model.Booking{UserID: concluded.ID, Date: date, Breakfast: true})

	totals, err := svc.DayTotals(ctx, date, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Breakfast)
}

func TestRoster(t *testing.T) {
	s := testutil.NewStore(t)
	svc := aggregate.New(s)
	absences := absence.New(s)
	ctx := context.Background()

	stu1 := testutil.SeedUser(t, s, "stu1", 3, model.RoleStudent)
	stu2 := testutil.SeedUser(t, s, "stu2", 3, model.RoleStudent)
	testutil.SeedUser(t, s, "stu9", 4, model.RoleStudent)
	testutil.SeedBooking(t, s, model.Booking{UserID: stu1.ID, Date: date, LunchKind: model.MealNormal})
	_, err := absences.Create(ctx, stu2.ID, date, date, "", "cmd3")
	require.NoError(t, err)

	rows, err := svc.Roster(ctx, 3, date)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byNII := map[string]model.RosterRow{}
	for _, row := range rows {
		byNII[row.User.NII] = row
	}
	require.NotNil(t, byNII["stu1"].Booking)
	assert.Equal(t, model.MealNormal, byNII["stu1"].Booking.LunchKind)
	assert.False(t, byNII["stu1"].Absent)
	assert.Nil(t, byNII["stu2"].Booking)
	assert.True(t, byNII["stu2"].Absent)
}

func TestWeekTotals(t *testing.T) {
	s := testutil.NewStore(t)
	svc := aggregate.New(s)
	ctx := context.Background()

	monday := testutil.Date(2026, time.March, 2)
	stu := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)
	testutil.SeedBooking(t, s, model.Booking{UserID: stu.ID, Date: monday, Breakfast: true})
	testutil.SeedBooking(t, s, model.Booking{UserID: stu.ID, Date: monday.AddDate(0, 0, 3), Snack: true})

	week, err := svc.WeekTotals(ctx, monday)
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, 1, week[0].Breakfast)
	assert.Equal(t, 1, week[3].Snack)
	assert.Equal(t, model.DayTotals{}, week[6])
}
