package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/metrics"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/utils"
)

// AccountLookup loads the account behind a verified session token.  A
// missing account must be reported as repository.ErrNotFound.
type AccountLookup interface {
	GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// Policy maps operation identifiers (e.g. "products.create") to the roles
// allowed to perform them.  Operations missing from the map, or mapped to an
// empty set, are denied to everyone.
type Policy map[string]model.RoleSet

// Allows reports whether role may perform op.
func (p Policy) Allows(op string, role model.Role) bool {
	return p[op].Allows(role)
}

// Guard authenticates bearer tokens and authorizes them against a Policy.
// It only reads accounts.
type Guard struct {
	signer   *utils.TokenSigner
	accounts AccountLookup
	policy   Policy
	log      *zap.Logger
}

func NewGuard(signer *utils.TokenSigner, accounts AccountLookup, policy Policy, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{signer: signer, accounts: accounts, policy: policy, log: log.Named("guard")}
}

// bearerToken extracts the token from "Bearer <token>".  The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="storefront"`)
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

// Require returns middleware admitting only callers whose current role is in
// the policy entry for op.  No/invalid token or a deleted account yields
// 401; a known caller without the role yields 403.
func (g *Guard) Require(op string) echo.MiddlewareFunc {
	roles := g.policy[op]
	if len(roles) == 0 {
		g.log.Error("operation has no role policy, all requests will be denied", zap.String("operation", op))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				metrics.RecordGuardDecision(op, "unauthorized")
				return unauthorized(c)
			}

			claims, err := g.signer.Verify(raw)
			if err != nil {
				g.log.Debug("token rejected", zap.String("operation", op), zap.Error(err))
				metrics.RecordGuardDecision(op, "unauthorized")
				return unauthorized(c)
			}

			acc, err := g.accounts.GetByID(c.Request().Context(), claims.ID)
			if errors.Is(err, repository.ErrNotFound) {
				metrics.RecordGuardDecision(op, "unauthorized")
				return unauthorized(c)
			}
			if err != nil {
				g.log.Error("account lookup failed", zap.Uint64("account_id", claims.ID), zap.Error(err))
				metrics.RecordGuardDecision(op, "error")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			if !roles.Allows(acc.Role) {
				g.log.Info("access denied",
					zap.String("operation", op),
					zap.Uint64("account_id", acc.ID),
					zap.String("role", string(acc.Role)))
				metrics.RecordGuardDecision(op, "forbidden")
				return forbidden(c)
			}

			SetIdentity(c, Identity{ID: acc.ID, Role: acc.Role})
			metrics.RecordGuardDecision(op, "allow")
			return next(c)
		}
	}
}
