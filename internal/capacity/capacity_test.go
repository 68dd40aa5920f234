package capacity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/capacity"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/testutil"
)

func TestWouldExceed(t *testing.T) {
	capped := model.MealCapacity{MaxTotal: 2}
	unbounded := model.MealCapacity{MaxTotal: -1}

	tests := []struct {
		name    string
		cap     model.MealCapacity
		current int
		delta   int
		want    bool
	}{
		{"under cap", capped, 0, 1, false},
		{"exactly at cap", capped, 1, 1, false},
		{"one over", capped, 2, 1, true},
		{"no delta at cap", capped, 2, 0, false},
		{"unbounded never rejects", unbounded, 1000, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capacity.WouldExceed(tt.cap, tt.current, tt.delta))
		})
	}
}

func TestOccupancyReportsCapsAndCounts(t *testing.T) {
	s := testutil.NewStore(t)
	svc := capacity.New(s)
	ctx := context.Background()
	date := testutil.Date(2026, time.March, 5)

	stu := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)
	testutil.SeedBooking(t, s, model.Booking{UserID: stu.ID, Date: date, Breakfast: true, LunchKind: model.MealNormal})
	require.NoError(t, svc.Set(ctx, date, model.MealLunch, 100))

	current, err := s.Occupancy(ctx, date)
	require.NoError(t, err)

	occ, err := svc.Occupancy(ctx, date, current)
	require.NoError(t, err)
	assert.Equal(t, 1, occ[model.MealLunch].Current)
	assert.Equal(t, 100, occ[model.MealLunch].Cap)
	assert.Equal(t, 1, occ[model.MealBreakfast].Current)
	assert.True(t, occ[model.MealBreakfast].Unlimited())
	assert.Equal(t, 0, occ[model.MealDinner].Current)
}
