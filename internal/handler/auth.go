// Package handler translates HTTP requests into usecase calls and the
// usecase error taxonomy into HTTP statuses. No business logic lives here.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dkoval/authgate/internal/middleware"
	"github.com/dkoval/authgate/internal/model"
	"github.com/dkoval/authgate/internal/queue"
	"github.com/dkoval/authgate/internal/service"
	"github.com/dkoval/authgate/internal/usecase"
)

const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	auth   usecase.Service
	events *service.Publisher
	log    zerolog.Logger
}

// NewAuthHandler constructs the handler. events may be nil to disable
// event publishing.
func NewAuthHandler(auth usecase.Service, events *service.Publisher, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, events: events, log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type identityPart struct {
	ID          uint64     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Provider    string     `json:"provider"`
	PictureURL  string     `json:"picture_url,omitempty"`
	IsVerified  bool       `json:"is_verified"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}
type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Identity identityPart `json:"identity"`
	Access   tokenPart    `json:"access"`
	Refresh  tokenPart    `json:"refresh"`
}

// sanitize maps an identity to its wire shape. The password hash and
// external subject id never leave the service.
func sanitize(ident model.Identity) identityPart {
	return identityPart{
		ID:          ident.ID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		Provider:    ident.Provider,
		PictureURL:  ident.PictureURL,
		IsVerified:  ident.IsVerified,
		CreatedAt:   ident.CreatedAt,
		LastLoginAt: ident.LastLoginAt,
	}
}

func pairResp(ident model.Identity, pair usecase.TokenPair) authResp {
	return authResp{
		Identity: sanitize(ident),
		Access:   tokenPart{Token: pair.AccessToken, Expires: pair.AccessExpiresAt},
		Refresh:  tokenPart{Token: pair.RefreshToken, Expires: pair.RefreshExpiresAt},
	}
}

// fail maps the usecase error taxonomy to HTTP statuses. Authentication
// failures share one status so callers cannot probe which check failed.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	var ve *usecase.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Msg})
	}
	var fe *usecase.FederationError
	if errors.As(err, &fe) {
		h.log.Error().Err(fe.Err).Msg("federated login failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "federated login failed"})
	}
	switch {
	case errors.Is(err, usecase.ErrEmailTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case errors.Is(err, usecase.ErrInvalidCredentials):
		// err.Error() is either the uniform message or the provider
		// hint variant; both carry the same status.
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, usecase.ErrInvalidOrExpiredToken),
		errors.Is(err, usecase.ErrIdentityNotFound):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	case errors.Is(err, usecase.ErrIncorrectPassword):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "incorrect password"})
	case errors.Is(err, usecase.ErrOAuthNoPassword):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "this account signs in with an external provider"})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// publish fires an auth event after the operation has fully committed.
// Best-effort: the publisher logs its own failures.
func (h *AuthHandler) publish(ev queue.AuthEvent) {
	if h.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	h.events.Publish(ctx, ev)
}

// Register creates a local identity. Tokens are not issued here; the
// client logs in with the credentials it just registered.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ident, err := h.auth.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		return h.fail(c, err)
	}

	h.publish(queue.AuthEvent{
		Event:      queue.EventIdentityRegistered,
		IdentityID: ident.ID,
		Email:      ident.Email,
		Provider:   ident.Provider,
	})
	return c.JSON(http.StatusCreated, sanitize(ident))
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ident, pair, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}

	h.publish(queue.AuthEvent{
		Event:      queue.EventLogin,
		IdentityID: ident.ID,
		Email:      ident.Email,
		Provider:   ident.Provider,
		Method:     "password",
	})
	return c.JSON(http.StatusOK, pairResp(ident, pair))
}

// Refresh rotates the presented refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access":  tokenPart{Token: pair.AccessToken, Expires: pair.AccessExpiresAt},
		"refresh": tokenPart{Token: pair.RefreshToken, Expires: pair.RefreshExpiresAt},
	})
}

// Logout revokes the presented refresh token. Idempotent: an unknown or
// already-revoked token still yields 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.auth.Logout(ctx, req.RefreshToken); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the authenticated identity.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	id, ok := middleware.IdentityID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.auth.LogoutAll(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword replaces the authenticated identity's password hash.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	id, ok := middleware.IdentityID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.auth.ChangePassword(ctx, id, req.OldPassword, req.NewPassword); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ident, err := h.auth.Me(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sanitize(ident))
}
