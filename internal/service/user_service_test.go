package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/utils"
)

func seedUsers(t *testing.T) (*UserService, *memStore, uint64, uint64) {
	t.Helper()
	store := newMemStore()
	ctx := context.Background()
	admin, err := store.Create(ctx, model.Account{Email: "root@example.com", PasswordHash: "x", Role: model.RoleAdmin, IsVerified: true})
	require.NoError(t, err)
	user, err := store.Create(ctx, model.Account{Email: "user@example.com", PasswordHash: "x", IsVerified: true})
	require.NoError(t, err)
	svc := NewUserService(store, utils.NewPasswordHasher(bcrypt.MinCost), zaptest.NewLogger(t))
	return svc, store, admin, user
}

func TestUsers_Current(t *testing.T) {
	svc, _, _, user := seedUsers(t)
	acc, err := svc.Current(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", acc.Email)

	_, err = svc.Current(context.Background(), 999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUsers_List(t *testing.T) {
	svc, _, _, _ := seedUsers(t)
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestUsers_Update(t *testing.T) {
	svc, store, _, user := seedUsers(t)
	ctx := context.Background()
	name, pw := "  Newname ", "longenough"

	acc, err := svc.Update(ctx, user, UpdateInput{UserName: &name, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "Newname", acc.UserName)

	stored, _ := store.GetByID(ctx, user)
	assert.True(t, utils.NewPasswordHasher(bcrypt.MinCost).Verify(pw, stored.PasswordHash))

	short := "abc"
	_, err = svc.Update(ctx, user, UpdateInput{Password: &short})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(ctx, 999, UpdateInput{UserName: &name})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUsers_DeleteOwnership(t *testing.T) {
	svc, store, admin, user := seedUsers(t)
	ctx := context.Background()

	_, err := svc.Delete(ctx, admin, user, model.RoleNormalUser)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Delete(ctx, user, user, model.RoleNormalUser)
	require.NoError(t, err)
	_, err = store.GetByID(ctx, user)
	assert.Error(t, err)

	_, err = svc.Delete(ctx, user, admin, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
