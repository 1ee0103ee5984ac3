package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dkoval/authgate/internal/token"
)

func protectedEcho(codec *token.Codec) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1")
	g.Use(AccessAuth(codec))
	g.GET("/me", func(c echo.Context) error {
		id, ok := IdentityID(c)
		if !ok {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "no identity in context"})
		}
		return c.JSON(http.StatusOK, echo.Map{"identity_id": id})
	})
	return e
}

func TestAccessAuthAllowsAccessToken(t *testing.T) {
	codec := token.NewCodec("mw-secret", "authgate-test")
	e := protectedEcho(codec)

	issued, err := codec.Issue("42", token.KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestAccessAuthRejects(t *testing.T) {
	codec := token.NewCodec("mw-secret", "authgate-test")
	other := token.NewCodec("other-secret", "authgate-test")
	e := protectedEcho(codec)

	refresh, err := codec.Issue("42", token.KindRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue refresh: %v", err)
	}
	forged, err := other.Issue("42", token.KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue forged: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer nope"},
		{"refresh token used as access", "Bearer " + refresh.Token},
		{"wrong secret", "Bearer " + forged.Token},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}
