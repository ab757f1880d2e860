package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/utils"
)

type fixedAccounts map[uint64]model.Account

func (f fixedAccounts) GetByID(_ context.Context, id uint64) (model.Account, error) {
	a, ok := f[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func TestPolicy(t *testing.T) {
	p := Policy()
	adminOnly := []string{OpUsersList, OpProductsCreate, OpProductsUpdate, OpProductsDelete, OpReviewsList}
	shared := []string{OpUsersCurrent, OpUsersUpdate, OpUsersDelete, OpReviewsCreate, OpReviewsUpdate, OpReviewsDelete}

	assert.Len(t, p, len(adminOnly)+len(shared))
	for _, op := range adminOnly {
		assert.True(t, p.Allows(op, model.RoleAdmin), op)
		assert.False(t, p.Allows(op, model.RoleNormalUser), op)
	}
	for _, op := range shared {
		assert.True(t, p.Allows(op, model.RoleAdmin), op)
		assert.True(t, p.Allows(op, model.RoleNormalUser), op)
	}
	assert.False(t, p.Allows("orders.create", model.RoleAdmin))
}

func newTestServer(t *testing.T) (*echo.Echo, *utils.TokenSigner) {
	t.Helper()
	log := zaptest.NewLogger(t)
	signer := utils.NewTokenSigner([]byte("router-secret"), time.Hour)
	accounts := fixedAccounts{7: {ID: 7, Role: model.RoleNormalUser, IsVerified: true}}

	e := echo.New()
	RegisterRoutes(e, Deps{
		Guard:    middleware.NewGuard(signer, accounts, Policy(), log),
		Auth:     handler.NewAuthHandler(nil, log),
		Users:    handler.NewUserHandler(nil, log),
		Products: handler.NewProductHandler(nil, nil, log),
		Reviews:  handler.NewReviewHandler(nil, nil, log),
	})
	return e, signer
}

func TestRegisterRoutes_Table(t *testing.T) {
	e, _ := newTestServer(t)
	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"POST /api/users/auth/register",
		"POST /api/users/auth/login",
		"GET /api/users/verify-email/:token",
		"POST /api/users/forgot-password",
		"GET /api/users/reset-password/:id/:token",
		"POST /api/users/reset-password",
		"GET /api/users/current-user",
		"GET /api/users",
		"PUT /api/users",
		"DELETE /api/users/:id",
		"GET /api/products",
		"GET /api/products/:id",
		"POST /api/products",
		"PUT /api/products/:id",
		"DELETE /api/products/:id",
		"POST /api/reviews/:productId",
		"GET /api/reviews",
		"GET /api/reviews/:id",
		"PUT /api/reviews/:id",
		"DELETE /api/reviews/:id",
	} {
		assert.True(t, got[want], want)
	}
	assert.False(t, got["GET /readyz"], "readiness needs a database")
}

func TestRegisterRoutes_GuardedRoutes(t *testing.T) {
	e, signer := newTestServer(t)
	tok, err := signer.Sign(7, model.RoleNormalUser)
	require.NoError(t, err)

	do := func(method, path, auth string) int {
		req := httptest.NewRequest(method, path, nil)
		if auth != "" {
			req.Header.Set(echo.HeaderAuthorization, auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/metrics", ""))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/api/products", ""))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/users", ""))
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/products", "Bearer "+tok.Token))
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/reviews", "Bearer "+tok.Token))
	assert.Equal(t, http.StatusForbidden, do(http.MethodDelete, "/api/products/3", "Bearer "+tok.Token))
}
