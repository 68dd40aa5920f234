package absence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/absence"
	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/testutil"
)

func TestCreateRejectsInvertedRange(t *testing.T) {
	s := testutil.NewStore(t)
	svc := absence.New(s)
	stu := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)

	_, err := svc.Create(context.Background(), stu.ID,
		testutil.Date(2026, time.March, 10), testutil.Date(2026, time.March, 5), "", "stu1")
	assert.True(t, apperr.Is(err, apperr.BadInput))
}

func TestIsAbsentBoundaries(t *testing.T) {
	s := testutil.NewStore(t)
	svc := absence.New(s)
	ctx := context.Background()
	stu := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)

	from := testutil.Date(2026, time.March, 5)
	to := testutil.Date(2026, time.March, 8)
	_, err := svc.Create(ctx, stu.ID, from, to, "field trip", "cmd1")
	require.NoError(t, err)

	tests := []struct {
		date   time.Time
		absent bool
	}{
		{testutil.Date(2026, time.March, 4), false},
		{from, true},
		{testutil.Date(2026, time.March, 6), true},
		{to, true},
		{testutil.Date(2026, time.March, 9), false},
	}
	for _, tt := range tests {
		got, err := svc.IsAbsent(ctx, stu.ID, tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.absent, got, tt.date.Format("2006-01-02"))
	}
}

func TestDeleteRemovesPredicate(t *testing.T) {
	s := testutil.NewStore(t)
	svc := absence.New(s)
	ctx := context.Background()
	stu := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)

	date := testutil.Date(2026, time.March, 5)
	created, err := svc.Create(ctx, stu.ID, date, date, "", "stu1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	absent, err := svc.IsAbsent(ctx, stu.ID, date)
	require.NoError(t, err)
	assert.False(t, absent)

	assert.True(t, apperr.Is(svc.Delete(ctx, created.ID), apperr.NotFound))
}

func TestOverlappingAbsencesAllowed(t *testing.T) {
	s := testutil.NewStore(t)
	svc := absence.New(s)
	ctx := context.Background()
	stu := testutil.SeedUser(t, s, "stu1", 1, model.RoleStudent)

	d1 := testutil.Date(2026, time.March, 5)
	d2 := testutil.Date(2026, time.March, 7)
	_, err := svc.Create(ctx, stu.ID, d1, d2, "", "stu1")
	require.NoError(t, err)
	_, err = svc.Create(ctx, stu.ID, d1, d1, "", "cmd1")
	require.NoError(t, err)

	list, err := svc.ListForUser(ctx, stu.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
