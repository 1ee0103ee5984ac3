package model

import (
	"strings"
	"time"
)

// ProviderLocal tags identities that authenticate with a password held by
// this service. Federated identities carry "oauth:<provider>" instead.
const ProviderLocal = "local"

// OAuthProvider returns the provider tag for a federated identity,
// e.g. OAuthProvider("google") == "oauth:google".
func OAuthProvider(name string) string { return "oauth:" + name }

// Identity mirrors the `identities` table. A local identity always has a
// PasswordHash; a federated one always has an ExternalID. Records are never
// hard-deleted: deactivation flips IsActive.
type Identity struct {
	ID           uint64     // identities.id
	Email        string     // identities.email (stored lower-cased, unique)
	DisplayName  string     // identities.display_name
	PasswordHash string     // identities.password_hash (empty when federated)
	Provider     string     // identities.provider ("local" or "oauth:<name>")
	ExternalID   string     // identities.external_id (provider subject, empty when local)
	PictureURL   string     // identities.picture_url
	IsActive     bool       // identities.is_active
	IsVerified   bool       // identities.is_verified
	CreatedAt    time.Time  // identities.created_at
	UpdatedAt    time.Time  // identities.updated_at
	LastLoginAt  *time.Time // identities.last_login_at (nil until first login)
}

// IsLocal reports whether the identity authenticates with a password.
func (i Identity) IsLocal() bool { return i.Provider == ProviderLocal }

// ProviderName returns the bare provider name for a federated identity
// ("google" for "oauth:google") and "" for local ones.
func (i Identity) ProviderName() string {
	if rest, ok := strings.CutPrefix(i.Provider, "oauth:"); ok {
		return rest
	}
	return ""
}

// RefreshSession models a row in the `refresh_tokens` ledger. Only the
// SHA-256 hex of the token id is stored, never the token itself.
type RefreshSession struct {
	ID         uint64     // refresh_tokens.id
	IdentityID uint64     // refresh_tokens.identity_id
	TokenHash  string     // refresh_tokens.token_hash
	ExpiresAt  time.Time  // refresh_tokens.expires_at
	RevokedAt  *time.Time // refresh_tokens.revoked_at (nil while active)
	CreatedAt  time.Time  // refresh_tokens.created_at
}
