// Package handler exposes the HTTP endpoints.  Handlers bind and validate
// the request, call a service or repository, and map typed errors onto
// status codes; they hold no business rules beyond ownership checks.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/logger"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/service"
)

// requestTimeout bounds every store round trip made on behalf of a request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusFor maps a typed error to its HTTP status.  ok is false for
// infrastructure failures.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, service.ErrDuplicateAccount):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidResetLink),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrNotificationTimeout):
		return http.StatusRequestTimeout, true
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, false
	}
	return http.StatusInternalServerError, false
}

// respondError writes {"error": ...}.  Typed errors carry their own
// message; anything else is logged and reported generically.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status, ok := statusFor(err)
	if ok {
		return c.JSON(status, echo.Map{"error": err.Error()})
	}
	logger.LogError(log, "request failed", err)
	return c.JSON(status, echo.Map{"error": http.StatusText(status)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
