package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/service"
)

// AuthAPI is the part of service.AuthService the endpoints use.
type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Message, error)
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	RequestPasswordReset(ctx context.Context, email string) (service.Message, error)
	CheckResetLink(ctx context.Context, id uint64, token string) (service.Message, error)
	ResetPassword(ctx context.Context, id uint64, token, newPassword string) (service.Message, error)
	VerifyEmail(ctx context.Context, token string) (service.Message, error)
}

// AuthHandler serves the unauthenticated account endpoints.
type AuthHandler struct {
	Auth AuthAPI
	Log  *zap.Logger
}

func NewAuthHandler(auth AuthAPI, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Auth: auth, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserName string `json:"username"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordReq struct {
	Email string `json:"email"`
}

type resetPasswordReq struct {
	UserID             uint64 `json:"userId"`
	ResetPasswordToken string `json:"resetPasswordToken"`
	NewPassword        string `json:"newPassword"`
}

// Register: POST /api/users/auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	msg, err := h.Auth.Register(ctx, service.RegisterInput{Email: req.Email, Password: req.Password, UserName: req.UserName})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// Login: POST /api/users/auth/login.  Unverified accounts get 200 with a
// message and no token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// VerifyEmail: GET /api/users/verify-email/:token
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	msg, err := h.Auth.VerifyEmail(ctx, c.Param("token"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, msg)
}

// ForgotPassword: POST /api/users/forgot-password
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	msg, err := h.Auth.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, msg)
}

// CheckResetLink: GET /api/users/reset-password/:id/:token
func (h *AuthHandler) CheckResetLink(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, service.ErrInvalidResetLink.Error())
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	msg, err := h.Auth.CheckResetLink(ctx, id, c.Param("token"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, msg)
}

// ResetPassword: POST /api/users/reset-password
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.UserID == 0 || req.ResetPasswordToken == "" {
		return badRequest(c, service.ErrInvalidResetLink.Error())
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	msg, err := h.Auth.ResetPassword(ctx, req.UserID, req.ResetPasswordToken, req.NewPassword)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, msg)
}
