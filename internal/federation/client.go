// Package federation drives the authorization-code exchange with an
// external OAuth2 identity provider and normalizes the returned profile
// into the fields the usecase layer cares about. The client performs a
// single round trip per call and never retries; retry policy belongs to
// the caller.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrExchange is returned when the provider rejects the
	// authorization-code exchange. The provider's response body is
	// attached to the wrapped error for logging.
	ErrExchange = errors.New("federation: code exchange failed")
	// ErrProfile is returned when the userinfo fetch fails.
	ErrProfile = errors.New("federation: profile fetch failed")
)

// Profile is the normalized external identity.
type Profile struct {
	ExternalID    string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	EmailVerified bool   `json:"verified_email"`
}

// Config carries the provider endpoints and client credentials. Endpoints
// are explicit so tests can point the client at local servers.
type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserinfoURL  string
	Scopes       []string
}

// Client holds the immutable provider configuration. Safe for concurrent
// use; no state survives between Exchange and FetchProfile beyond the
// access token threaded by the caller.
type Client struct {
	name        string
	conf        *oauth2.Config
	userinfoURL string
	httpClient  *http.Client
}

// New builds a federation client from an explicit Config.
func New(cfg Config) *Client {
	return &Client{
		name: cfg.Name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userinfoURL: cfg.UserinfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewGoogle builds a client against Google's OAuth2 endpoints with the
// standard openid/profile/email scopes.
func NewGoogle(clientID, clientSecret, redirectURL string) *Client {
	return New(Config{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		AuthURL:      "https://accounts.google.com/o/oauth2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserinfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes:       []string{"openid", "profile", "email"},
	})
}

// Name returns the provider name, e.g. "google".
func (c *Client) Name() string { return c.name }

// AuthURL builds the provider's authorization endpoint URL. access_type=
// offline plus prompt=consent requests a refreshable, re-consentable grant.
func (c *Client) AuthURL(state string) string {
	return c.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange swaps the authorization code for the provider's access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", fmt.Errorf("%w: status %d: %s", ErrExchange, re.Response.StatusCode, re.Body)
		}
		return "", fmt.Errorf("%w: %v", ErrExchange, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrExchange)
	}
	return tok.AccessToken, nil
}

// FetchProfile retrieves the external identity using the provider access
// token obtained from Exchange.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("%w: read body: %v", ErrProfile, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Profile{}, fmt.Errorf("%w: status %d: %s", ErrProfile, resp.StatusCode, body)
	}

	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: decode: %v", ErrProfile, err)
	}
	if p.ExternalID == "" {
		return Profile{}, fmt.Errorf("%w: response missing subject id", ErrProfile)
	}
	return p, nil
}
