package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dkoval/authgate/internal/queue"
)

// oauthStateCookie correlates the redirect with its callback. The state
// lives only in the client's cookie; no server-side session is kept
// between the two requests.
const oauthStateCookie = "oauth_state"

const oauthStateTTL = 10 * time.Minute

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BeginOAuth redirects the client to the identity provider's consent page.
func (h *AuthHandler) BeginOAuth(c echo.Context) error {
	state, err := newState()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(oauthStateTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.auth.BeginOAuthLogin(state))
}

// OAuthCallback completes the federated login: state check, code exchange,
// profile fetch, identity upsert, token issuance. Nothing is persisted if
// any step fails.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider denied authorization"})
	}
	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and state required"})
	}
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "state mismatch"})
	}
	// Single use: clear the cookie whatever happens next.
	c.SetCookie(&http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	// The exchange and profile fetch make two provider round trips, so
	// allow the chain more time than the local operations get.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	ident, pair, err := h.auth.CompleteOAuthLogin(ctx, code)
	if err != nil {
		return h.fail(c, err)
	}

	h.publish(queue.AuthEvent{
		Event:      queue.EventLogin,
		IdentityID: ident.ID,
		Email:      ident.Email,
		Provider:   ident.Provider,
		Method:     "oauth",
	})
	return c.JSON(http.StatusOK, pairResp(ident, pair))
}
