package middleware

// identity.go holds the context keys and helpers shared across middleware
// files and handlers. AccessAuth stores the verified subject under
// identityIDKey; everything downstream reads it through IdentityID.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const identityIDKey = "identity_id"

// IdentityID returns the authenticated identity id set by AccessAuth, or
// false when the request is unauthenticated.
func IdentityID(c echo.Context) (uint64, bool) {
	v := c.Get(identityIDKey)
	id, ok := v.(uint64)
	return id, ok && id != 0
}

// identityKeyPart renders the identity for rate-limit keys; anonymous
// requests share the "anon" bucket dimension.
func identityKeyPart(c echo.Context) string {
	if id, ok := IdentityID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
