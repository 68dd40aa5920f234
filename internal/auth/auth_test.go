package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalmess/api/internal/apperr"
	"github.com/navalmess/api/internal/auth"
	"github.com/navalmess/api/internal/model"
	"github.com/navalmess/api/internal/store"
	"github.com/navalmess/api/internal/testutil"
)

func newService(t *testing.T, nonProduction bool) (*auth.Service, *store.Store, *auth.JWTManager) {
	t.Helper()
	s := testutil.NewStore(t)
	jwt := auth.NewJWTManager([]byte("test-secret"), "test", time.Hour)
	return auth.New(s, jwt, nonProduction), s, jwt
}

func TestLoginSuccess(t *testing.T) {
	svc, s, jwt := newService(t, false)
	u := testutil.SeedUser(t, s, "123456", 2, model.RoleStudent)

	got, token, err := svc.Login(context.Background(), "123456", "123456", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := jwt.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "123456", claims.NII)
	assert.Equal(t, model.RoleStudent, claims.Role)

	events, err := s.ListLoginEvents(context.Background(), "123456", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, "10.0.0.1", events[0].IP)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, s, _ := newService(t, false)
	testutil.SeedUser(t, s, "123456", 2, model.RoleStudent)

	_, _, err := svc.Login(context.Background(), "123456", "wrong", "")
	assert.True(t, apperr.Is(err, apperr.NotAllowed))

	events, err := s.ListLoginEvents(context.Background(), "123456", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _, _ := newService(t, false)
	_, _, err := svc.Login(context.Background(), "nobody", "x", "")
	assert.True(t, apperr.Is(err, apperr.NotAllowed))
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	svc, s, _ := newService(t, false)
	u := testutil.SeedUser(t, s, "123456", 2, model.RoleStudent)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := svc.Login(ctx, "123456", "wrong", "")
		assert.True(t, apperr.Is(err, apperr.NotAllowed))
	}

	// The fifth failure set locked_until; the next attempt is rejected
	// outright, even with the correct password.
	_, _, err := svc.Login(ctx, "123456", "123456", "")
	require.True(t, apperr.Is(err, apperr.AccountLocked))

	locked, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, locked.LockedUntil)
	assert.True(t, locked.LockedUntil.After(time.Now()))
}

func TestLockExpiryAllowsLogin(t *testing.T) {
	svc, s, _ := newService(t, false)
	u := testutil.SeedUser(t, s, "123456", 2, model.RoleStudent)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.SetUserLockedUntil(ctx, u.ID, &past))

	_, _, err := svc.Login(ctx, "123456", "123456", "")
	assert.NoError(t, err)
}

func TestSystemAccountNonProduction(t *testing.T) {
	svc, _, _ := newService(t, true)

	u, token, err := svc.Login(context.Background(), "cozinha", "cozinha", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleKitchen, u.Role)
	assert.NotEmpty(t, token)
}

func TestSystemAccountIgnoredInProduction(t *testing.T) {
	svc, _, _ := newService(t, false)

	_, _, err := svc.Login(context.Background(), "cozinha", "cozinha", "")
	assert.True(t, apperr.Is(err, apperr.NotAllowed))
}

func TestChangePassword(t *testing.T) {
	svc, s, _ := newService(t, false)
	u := testutil.SeedUser(t, s, "123456", 2, model.RoleStudent)
	ctx := context.Background()

	require.NoError(t, s.UpdateUserPassword(ctx, u.ID, u.PasswordHash, true))

	err := svc.ChangePassword(ctx, u.ID, "wrong", "newsecret")
	assert.True(t, apperr.Is(err, apperr.NotAllowed))

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "123456", "newsecret"))

	updated, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, updated.MustChangePassword)
	assert.True(t, auth.VerifyPassword("newsecret", updated.PasswordHash))
}

func TestUpdateContacts(t *testing.T) {
	svc, s, _ := newService(t, false)
	u := testutil.SeedUser(t, s, "123456", 2, model.RoleStudent)
	ctx := context.Background()

	email := "stu@academy.example"
	phone := "+351000000000"
	require.NoError(t, svc.UpdateContacts(ctx, u.ID, &email, &phone))

	updated, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Email)
	assert.Equal(t, email, *updated.Email)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)
}
