// Package usecase orchestrates registration, login, token rotation, and
// federated login over the storage and federation interfaces. It holds no
// per-request state; a single service value serves all requests.
package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkoval/authgate/internal/federation"
	"github.com/dkoval/authgate/internal/model"
	"github.com/dkoval/authgate/internal/repository"
	"github.com/dkoval/authgate/internal/token"
	"github.com/dkoval/authgate/internal/utils"
)

// IdentityStore is the identity-repository capability this core consumes.
// The MySQL implementation lives in internal/repository; the surrounding
// application may supply any other binding of the same contract.
type IdentityStore interface {
	GetByEmail(ctx context.Context, email string) (model.Identity, error)
	GetByID(ctx context.Context, id uint64) (model.Identity, error)
	Create(ctx context.Context, ident *model.Identity) error
	Update(ctx context.Context, ident *model.Identity) error
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// TokenLedger tracks issued refresh tokens for rotation and revocation.
type TokenLedger interface {
	Record(ctx context.Context, identityID uint64, tokenHash string, expiresAt time.Time) error
	IsActive(ctx context.Context, tokenHash string) (uint64, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeActive(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForIdentity(ctx context.Context, identityID uint64) error
}

// FederatedStore groups the identity write and the ledger record of the
// OAuth callback into one atomic unit, so a failure midway never leaves a
// half-applied login observable.
type FederatedStore interface {
	// CreateFederated inserts the identity and records the refresh session
	// in one transaction. mint is called with the assigned identity id and
	// returns the ledger entry for the freshly issued refresh token.
	CreateFederated(ctx context.Context, ident *model.Identity, mint func(id uint64) (tokenHash string, expiresAt time.Time, err error)) error
	// UpdateFederated persists the identity changes and the ledger entry
	// in one transaction.
	UpdateFederated(ctx context.Context, ident *model.Identity, tokenHash string, expiresAt time.Time) error
}

// Federation is the slice of the OAuth2 client the service needs.
type Federation interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (federation.Profile, error)
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service is the operation surface consumed by the HTTP handlers and, via
// VerifyAccess, by every other subsystem that needs to resolve a bearer
// token into a caller identity.
type Service interface {
	Register(ctx context.Context, email, name, password string) (model.Identity, error)
	Login(ctx context.Context, email, password string) (model.Identity, TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, identityID uint64) error
	ChangePassword(ctx context.Context, identityID uint64, oldPassword, newPassword string) error
	BeginOAuthLogin(state string) string
	CompleteOAuthLogin(ctx context.Context, code string) (model.Identity, TokenPair, error)
	VerifyAccess(raw string) (uint64, error)
	Me(ctx context.Context, identityID uint64) (model.Identity, error)
}

// Config carries the immutable knobs the service needs.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

type authService struct {
	cfg        Config
	log        zerolog.Logger
	identities IdentityStore
	ledger     TokenLedger
	sessions   FederatedStore
	fed        Federation
	codec      *token.Codec
}

// NewAuthService wires the service from its collaborators.
func NewAuthService(cfg Config, log zerolog.Logger, identities IdentityStore, ledger TokenLedger, sessions FederatedStore, fed Federation, codec *token.Codec) Service {
	return &authService{
		cfg:        cfg,
		log:        log,
		identities: identities,
		ledger:     ledger,
		sessions:   sessions,
		fed:        fed,
		codec:      codec,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, email, name, password string) (model.Identity, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Identity{}, validationf("invalid email address")
	}
	if len(password) < 8 {
		return model.Identity{}, validationf("password must be at least 8 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Identity{}, validationf("name required")
	}

	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.Identity{}, err
	}

	ident := model.Identity{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Provider:     model.ProviderLocal,
		IsActive:     true,
		IsVerified:   true, // email verification deferred
	}
	if err := s.identities.Create(ctx, &ident); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Identity{}, ErrEmailTaken
		}
		return model.Identity{}, err
	}

	s.log.Info().Uint64("identity_id", ident.ID).Msg("identity registered")
	return ident, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (model.Identity, TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.Identity{}, TokenPair{}, validationf("email and password required")
	}

	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn the same CPU as a real password check so timing
			// does not reveal whether the account exists.
			utils.FakeVerify(password)
			return model.Identity{}, TokenPair{}, ErrInvalidCredentials
		}
		return model.Identity{}, TokenPair{}, err
	}
	if !ident.IsLocal() {
		utils.FakeVerify(password)
		// Same status as any other credential failure; the provider
		// hint in the message is a deliberate UX exception.
		return model.Identity{}, TokenPair{}, providerMismatchErr(ident.ProviderName())
	}
	if !utils.VerifyPassword(ident.PasswordHash, password) || !ident.IsActive {
		return model.Identity{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, refreshHash, refreshExp, err := s.issuePair(ident.ID)
	if err != nil {
		return model.Identity{}, TokenPair{}, err
	}
	if err := s.ledger.Record(ctx, ident.ID, refreshHash, refreshExp); err != nil {
		return model.Identity{}, TokenPair{}, err
	}

	now := time.Now().UTC()
	if err := s.identities.TouchLastLogin(ctx, ident.ID, now); err != nil {
		s.log.Warn().Err(err).Uint64("identity_id", ident.ID).Msg("touch last login failed")
	}
	ident.LastLoginAt = &now

	s.log.Info().Uint64("identity_id", ident.ID).Msg("login")
	return ident, pair, nil
}

func providerMismatchErr(provider string) error {
	return &providerHintError{provider: provider}
}

// providerHintError is ErrInvalidCredentials with a message naming the
// identity's real provider.
type providerHintError struct {
	provider string
}

func (e *providerHintError) Error() string {
	return "invalid credentials: this account signs in with " + e.provider
}

func (e *providerHintError) Is(target error) bool { return target == ErrInvalidCredentials }

func (s *authService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(strings.TrimSpace(refreshToken), token.KindRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidOrExpiredToken
	}
	identityID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return TokenPair{}, ErrInvalidOrExpiredToken
	}

	// The conditional revoke is the rotation gate: of two concurrent
	// refreshes presenting the same token, exactly one observes the
	// active row and proceeds; the other fails here.
	ok, err := s.ledger.RevokeActive(ctx, token.HashID(claims.ID))
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, ErrInvalidOrExpiredToken
	}

	ident, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrIdentityNotFound
		}
		return TokenPair{}, err
	}
	if !ident.IsActive {
		return TokenPair{}, ErrIdentityNotFound
	}

	pair, refreshHash, refreshExp, err := s.issuePair(ident.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.ledger.Record(ctx, ident.ID, refreshHash, refreshExp); err != nil {
		// The old token is already revoked, so a failure here leaves no
		// stale token valid; the caller simply logs in again.
		return TokenPair{}, err
	}

	s.log.Debug().Uint64("identity_id", ident.ID).Msg("refresh rotated")
	return pair, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Verify(strings.TrimSpace(refreshToken), token.KindRefresh)
	if err != nil {
		// Logout never fails from the caller's perspective; an invalid
		// token has no session to end.
		return nil
	}
	if err := s.ledger.Revoke(ctx, token.HashID(claims.ID)); err != nil {
		s.log.Warn().Err(err).Msg("logout revoke failed")
	}
	return nil
}

func (s *authService) LogoutAll(ctx context.Context, identityID uint64) error {
	return s.ledger.RevokeAllForIdentity(ctx, identityID)
}

func (s *authService) ChangePassword(ctx context.Context, identityID uint64, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return validationf("password must be at least 8 characters")
	}

	ident, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return err
	}
	if !ident.IsLocal() {
		return ErrOAuthNoPassword
	}
	if !utils.VerifyPassword(ident.PasswordHash, oldPassword) {
		return ErrIncorrectPassword
	}

	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	ident.PasswordHash = hash
	// Outstanding refresh tokens stay valid after a password change;
	// LogoutAll is the explicit way to end other sessions.
	if err := s.identities.Update(ctx, &ident); err != nil {
		return err
	}

	s.log.Info().Uint64("identity_id", ident.ID).Msg("password changed")
	return nil
}

func (s *authService) BeginOAuthLogin(state string) string {
	return s.fed.AuthURL(state)
}

func (s *authService) CompleteOAuthLogin(ctx context.Context, code string) (model.Identity, TokenPair, error) {
	if strings.TrimSpace(code) == "" {
		return model.Identity{}, TokenPair{}, validationf("authorization code required")
	}

	providerToken, err := s.fed.Exchange(ctx, code)
	if err != nil {
		return model.Identity{}, TokenPair{}, &FederationError{Err: err}
	}
	profile, err := s.fed.FetchProfile(ctx, providerToken)
	if err != nil {
		return model.Identity{}, TokenPair{}, &FederationError{Err: err}
	}
	email := normalizeEmail(profile.Email)
	if email == "" {
		return model.Identity{}, TokenPair{}, &FederationError{Err: errors.New("provider profile has no email")}
	}

	ident, err := s.identities.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.createFederated(ctx, email, profile)
	case err != nil:
		return model.Identity{}, TokenPair{}, &FederationError{Err: err}
	}

	if !ident.IsActive {
		return model.Identity{}, TokenPair{}, ErrInvalidCredentials
	}

	// Backfill what the profile knows and the record lacks; existing
	// values are never overwritten.
	if ident.ExternalID == "" {
		ident.ExternalID = profile.ExternalID
	}
	if ident.PictureURL == "" {
		ident.PictureURL = profile.Picture
	}
	now := time.Now().UTC()
	ident.LastLoginAt = &now

	pair, refreshHash, refreshExp, err := s.issuePair(ident.ID)
	if err != nil {
		return model.Identity{}, TokenPair{}, &FederationError{Err: err}
	}
	if err := s.sessions.UpdateFederated(ctx, &ident, refreshHash, refreshExp); err != nil {
		return model.Identity{}, TokenPair{}, &FederationError{Err: err}
	}

	s.log.Info().Uint64("identity_id", ident.ID).Str("provider", s.fed.Name()).Msg("federated login")
	return ident, pair, nil
}

func (s *authService) createFederated(ctx context.Context, email string, profile federation.Profile) (model.Identity, TokenPair, error) {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = email
	}
	ident := model.Identity{
		Email:       email,
		DisplayName: name,
		Provider:    model.OAuthProvider(s.fed.Name()),
		ExternalID:  profile.ExternalID,
		PictureURL:  profile.Picture,
		IsActive:    true,
		IsVerified:  true,
	}

	var pair TokenPair
	err := s.sessions.CreateFederated(ctx, &ident, func(id uint64) (string, time.Time, error) {
		p, refreshHash, refreshExp, err := s.issuePair(id)
		if err != nil {
			return "", time.Time{}, err
		}
		pair = p
		return refreshHash, refreshExp, nil
	})
	if err != nil {
		return model.Identity{}, TokenPair{}, &FederationError{Err: err}
	}

	s.log.Info().Uint64("identity_id", ident.ID).Str("provider", s.fed.Name()).Msg("federated identity created")
	return ident, pair, nil
}

func (s *authService) VerifyAccess(raw string) (uint64, error) {
	claims, err := s.codec.Verify(strings.TrimSpace(raw), token.KindAccess)
	if err != nil {
		return 0, ErrInvalidOrExpiredToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidOrExpiredToken
	}
	return id, nil
}

func (s *authService) Me(ctx context.Context, identityID uint64) (model.Identity, error) {
	ident, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Identity{}, ErrIdentityNotFound
		}
		return model.Identity{}, err
	}
	return ident, nil
}

// issuePair signs a fresh access/refresh pair for the subject and returns
// the ledger entry (hash of the refresh jti, expiry) alongside.
func (s *authService) issuePair(identityID uint64) (TokenPair, string, time.Time, error) {
	subject := strconv.FormatUint(identityID, 10)

	access, err := s.codec.Issue(subject, token.KindAccess, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, "", time.Time{}, err
	}
	refresh, err := s.codec.Issue(subject, token.KindRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, "", time.Time{}, err
	}

	pair := TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
	return pair, token.HashID(refresh.ID), refresh.ExpiresAt, nil
}
