package federation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testClient(t *testing.T, tokenHandler, userinfoHandler http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/userinfo", userinfoHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Config{
		Name:         "google",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.example/cb",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserinfoURL:  srv.URL + "/userinfo",
		Scopes:       []string{"openid", "profile", "email"},
	})
	c.httpClient = srv.Client()
	return c
}

func TestAuthURL(t *testing.T) {
	c := testClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	raw := c.AuthURL("state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	for key, want := range map[string]string{
		"client_id":     "client-id",
		"redirect_uri":  "https://app.example/cb",
		"state":         "state-123",
		"response_type": "code",
		"access_type":   "offline",
		"prompt":        "consent",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if scope := q.Get("scope"); !strings.Contains(scope, "email") {
		t.Errorf("scope = %q, want email included", scope)
	}
}

func TestExchange(t *testing.T) {
	c := testClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if got := r.Form.Get("grant_type"); got != "authorization_code" {
				t.Errorf("grant_type = %q", got)
			}
			if got := r.Form.Get("code"); got != "code-abc" {
				t.Errorf("code = %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"provider-token","token_type":"Bearer"}`))
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	got, err := c.Exchange(context.Background(), "code-abc")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if got != "provider-token" {
		t.Errorf("token = %q, want provider-token", got)
	}
}

func TestExchangeProviderRejects(t *testing.T) {
	c := testClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	_, err := c.Exchange(context.Background(), "bad-code")
	if !errors.Is(err, ErrExchange) {
		t.Fatalf("err = %v, want ErrExchange", err)
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("error does not carry provider body: %v", err)
	}
}

func TestFetchProfile(t *testing.T) {
	c := testClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer provider-token" {
				t.Errorf("Authorization = %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"ext-1","email":"ann@x.com","name":"Ann","picture":"https://img/p.png","verified_email":true}`))
		},
	)

	p, err := c.FetchProfile(context.Background(), "provider-token")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if p.ExternalID != "ext-1" || p.Email != "ann@x.com" || p.Name != "Ann" {
		t.Errorf("profile = %+v", p)
	}
	if !p.EmailVerified {
		t.Error("EmailVerified = false")
	}
}

func TestFetchProfileNonSuccess(t *testing.T) {
	c := testClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid token"}`))
		},
	)

	_, err := c.FetchProfile(context.Background(), "stale")
	if !errors.Is(err, ErrProfile) {
		t.Fatalf("err = %v, want ErrProfile", err)
	}
}

func TestFetchProfileMissingSubject(t *testing.T) {
	c := testClient(t,
		func(w http.ResponseWriter, r *http.Request) {},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"email":"ann@x.com"}`))
		},
	)

	if _, err := c.FetchProfile(context.Background(), "tok"); !errors.Is(err, ErrProfile) {
		t.Fatalf("err = %v, want ErrProfile", err)
	}
}
