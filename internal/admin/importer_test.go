package admin_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/admin"
	"github.com/navalmess/api/internal/auth"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
	"github.com/navalmess/api/internal/testutil"
)

func newService(t *testing.T) (*admin.Service, *store.Store) {
	t.Helper()
	s := testutil.NewStore(t)
	return admin.New(s, auth.HashPassword), s
}

func TestParseImportRow(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		header bool
		err    bool
		want   admin.ImportRow
	}{
		{
			name:   "full row",
			fields: []string{"123456", "42", "Ana Silva", "3", "student", "secret"},
			want:   admin.ImportRow{NII: "123456", NI: "42", FullName: "Ana Silva", Year: 3, Role: model.RoleStudent, Password: "secret"},
		},
		{
			name:   "defaults role and password",
			fields: []string{"123456", "42", "Ana Silva", "3"},
			want:   admin.ImportRow{NII: "123456", NI: "42", FullName: "Ana Silva", Year: 3, Role: model.RoleStudent},
		},
		{name: "header nii", fields: []string{"NII", "NI", "Nome", "Ano"}, header: true},
		{name: "header hash", fields: []string{"#", "x"}, header: true},
		{name: "header id lowercase", fields: []string{"id", "x"}, header: true},
		{name: "header num", fields: []string{"Num", "x", "y", "1"}, header: true},
		{name: "too few fields", fields: []string{"123456", "42"}, err: true},
		{name: "bad year", fields: []string{"123456", "42", "Ana", "three"}, err: true},
		{name: "year out of range", fields: []string{"123456", "42", "Ana", "9"}, err: true},
		{name: "unknown role", fields: []string{"123456", "42", "Ana", "3", "chef"}, err: true},
		{name: "missing name", fields: []string{"123456", "42", "", "3"}, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, header, err := admin.ParseImportRow(tt.fields)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.header, header)
			if !tt.header {
				assert.Equal(t, tt.want, row)
			}
		})
	}
}

func TestImportUsers(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	testutil.SeedUser(t, s, "222222", 2, model.RoleStudent)

	input := strings.Join([]string{
		"NII,NI,Nome,Ano",
		"111111,1,Bruno Costa,1",
		"222222,2,Duplicado Existente,2",
		"333333,3,Carla Dias,7,student",
		"badrow,4,Sem Ano,x",
	}, "\n")

	result, err := svc.ImportUsers(ctx, strings.NewReader(input), "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Skipped) // header + existing NII
	assert.Len(t, result.Errors, 1)

	// Imported users default their password to the NII and must change it.
	u, err := s.GetUserByNII(ctx, "111111")
	require.NoError(t, err)
	assert.True(t, u.MustChangePassword)
	assert.True(t, auth.VerifyPassword("111111", u.PasswordHash))

	// The pre-existing user was not overwritten.
	existing, err := s.GetUserByNII(ctx, "222222")
	require.NoError(t, err)
	assert.Equal(t, "User 222222", existing.FullName)
}

func TestPromoteDefaultPolicy(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	first := testutil.SeedUser(t, s, "y1", 1, model.RoleStudent)
	last := testutil.SeedUser(t, s, "y6", 6, model.RoleStudent)
	foundation := testutil.SeedUser(t, s, "y7", 7, model.RoleStudent)
	complementary := testutil.SeedUser(t, s, "y8", 8, model.RoleStudent)
	concluded := testutil.SeedUser(t, s, "y0", 0, model.RoleStudent)

	n, err := svc.Promote(ctx, nil, "admin")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	wants := map[string]int{"y1": 2, "y6": 0, "y7": 1, "y8": 0, "y0": 0}
	for _, u := range []model.User{first, last, foundation, complementary, concluded} {
		got, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, wants[u.NII], got.Year, u.NII)
	}
}

func TestCreateUserConflict(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	testutil.SeedUser(t, s, "111111", 1, model.RoleStudent)

	_, err := svc.CreateUser(ctx, admin.CreateInput{NII: "111111", FullName: "Dup"}, "admin")
	require.Error(t, err)
}

func TestDeleteUserCascades(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, s, "111111", 1, model.RoleStudent)
	date := testutil.Date(2026, 3, 5)
	testutil.SeedBooking(t, s, model.Booking{UserID: u.ID, Date: date, Breakfast: true})

	require.NoError(t, svc.DeleteUser(ctx, u.ID, "admin"))

	_, err := s.GetBooking(ctx, u.ID, date)
	require.Error(t, err)
}
