// Package middleware holds the HTTP middleware for the auth service:
// access-token authentication and the Redis-backed rate limiter.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dkoval/authgate/internal/token"
)

// AccessAuth validates a Bearer access token and stores its subject in the
// request context. Refresh tokens are rejected here by the codec's kind
// check, so a refresh token can never authorize a request directly. This
// middleware is the surface other subsystems use to resolve callers.
func AccessAuth(codec *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := codec.Verify(raw, token.KindAccess)
			if err != nil {
				// One message for every failure mode; which check
				// failed is not the client's business.
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			id, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(identityIDKey, id)
			return next(c)
		}
	}
}
