// Package router maps HTTP routes onto the auth handlers and their
// middleware.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/dkoval/authgate/internal/handler"
	"github.com/dkoval/authgate/internal/middleware"
	"github.com/dkoval/authgate/internal/token"
)

// RegisterRoutes registers the routes that need no authentication and no
// handler dependencies.
func RegisterRoutes(e *echo.Echo) {
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints. The rate limiter wraps only
// the unauthenticated group, where brute force lives; protected routes sit
// behind the access-token middleware instead.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, codec *token.Codec, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/oauth/google", a.BeginOAuth)
	g.GET("/oauth/google/callback", a.OAuthCallback)

	auth := e.Group("/v1")
	auth.Use(middleware.AccessAuth(codec))
	auth.GET("/me", a.Me)
	auth.POST("/password", a.ChangePassword)
	auth.POST("/logout-all", a.LogoutAll)
}
