package usecase

import (
	"errors"
	"fmt"
)

// Sentinel errors are the whole failure surface of the auth service.
// Handlers translate these to HTTP statuses; storage and network errors
// never escape the usecase unwrapped.
var (
	// ErrEmailTaken is returned by Register when the normalized email
	// already has an identity.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers every login failure: unknown email,
	// wrong password, deactivated account, or a federated identity.
	// Callers must not be able to tell these apart by status code.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOrExpiredToken is returned when a refresh token fails
	// signature, expiry, kind, or ledger checks, including losing a
	// concurrent rotation race.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrIdentityNotFound is returned when a token's subject no longer
	// resolves to an active identity.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrIncorrectPassword is returned by ChangePassword when the old
	// password does not verify.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrOAuthNoPassword is returned when a federated identity attempts
	// a password change. This is a policy precondition, not a secret.
	ErrOAuthNoPassword = errors.New("federated identity has no password to change")
)

// ValidationError reports malformed input caught before any storage access.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// FederationError wraps any failure in the OAuth callback chain: code
// exchange, profile fetch, or the persist step. The cause (including the
// provider's response body, when present) is retained for logging and
// never echoed verbatim to the end user.
type FederationError struct {
	Err error
}

func (e *FederationError) Error() string { return "federation login failed: " + e.Err.Error() }

func (e *FederationError) Unwrap() error { return e.Err }
