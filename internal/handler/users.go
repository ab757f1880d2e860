package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/service"
)

// UserAPI is the part of service.UserService the endpoints use.
type UserAPI interface {
	Current(ctx context.Context, id uint64) (model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	Update(ctx context.Context, id uint64, in service.UpdateInput) (model.Account, error)
	Delete(ctx context.Context, targetID, callerID uint64, callerRole model.Role) (service.Message, error)
}

// UserHandler serves the authenticated /api/users endpoints.  Every route
// sits behind the guard, so a missing identity is a wiring bug.
type UserHandler struct {
	Users UserAPI
	Log   *zap.Logger
}

func NewUserHandler(users UserAPI, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{Users: users, Log: log}
}

type updateUserReq struct {
	Password *string `json:"password"`
	UserName *string `json:"username"`
}

// CurrentUser: GET /api/users/current-user
func (h *UserHandler) CurrentUser(c echo.Context) error {
	me, ok := middleware.IdentityFrom(c)
	if !ok {
		return noIdentity(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	acc, err := h.Users.Current(ctx, me.ID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, acc)
}

// List: GET /api/users (admin)
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Users.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Update: PUT /api/users changes the caller's own profile.
func (h *UserHandler) Update(c echo.Context) error {
	me, ok := middleware.IdentityFrom(c)
	if !ok {
		return noIdentity(c)
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	acc, err := h.Users.Update(ctx, me.ID, service.UpdateInput{UserName: req.UserName, Password: req.Password})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, acc)
}

// Delete: DELETE /api/users/:id.  Self or admin.
func (h *UserHandler) Delete(c echo.Context) error {
	me, ok := middleware.IdentityFrom(c)
	if !ok {
		return noIdentity(c)
	}
	target, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	msg, err := h.Users.Delete(ctx, target, me.ID, me.Role)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, msg)
}

func noIdentity(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
