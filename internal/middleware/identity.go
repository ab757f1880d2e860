package middleware

// identity.go holds the request identity the guard attaches to the echo
// context and the helpers handlers use to read it back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/model"
)

const identityKey = "identity"

// Identity is the caller resolved by the guard.  Role comes from the stored
// account, not from the token.
type Identity struct {
	ID   uint64
	Role model.Role
}

func (id Identity) IsAdmin() bool { return id.Role == model.RoleAdmin }

// SetIdentity stores id on c, plus plain "user_id" and "role" values for
// code that reads the context directly.
func SetIdentity(c echo.Context, id Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", id.ID)
	c.Set("role", string(id.Role))
}

// IdentityFrom returns the identity stored by Guard.Require.  ok is false on
// routes the guard did not run on.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok && id.ID != 0
}

// subject identifies the caller for logs: the account id, or "guest".
func subject(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.ID, 10)
	}
	return "guest"
}
