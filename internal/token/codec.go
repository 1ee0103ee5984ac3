// Package token signs and verifies the compact bearer tokens used for
// access and refresh credentials. The codec is a pure function of the
// signing secret: it keeps no state and is safe for concurrent use.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes access tokens from refresh tokens. Verification is
// kind-strict so an access token can never be replayed as a refresh token
// or vice versa.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrInvalidSignature covers bad signatures, malformed tokens, and
	// tokens missing required claims.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned when the encoded expiry (plus leeway) has passed.
	ErrExpired = errors.New("token expired")
	// ErrKindMismatch is returned when the token's kind claim does not
	// match the kind the caller expected.
	ErrKindMismatch = errors.New("token kind mismatch")
)

// Claims is the decoded, verified content of a token.
type Claims struct {
	Subject   string
	ID        string // jti; set on refresh tokens only
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issued is a freshly signed token along with its id and expiry. ID is
// empty for access tokens; for refresh tokens it is the jti the ledger
// tracks.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Codec issues and verifies HS256 tokens with a process-wide secret.
type Codec struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewCodec builds a codec around the signing secret. A 30 second leeway is
// applied to expiry checks to absorb clock skew between hosts.
func NewCodec(secret, issuer string) *Codec {
	return &Codec{
		secret: []byte(secret),
		issuer: issuer,
		leeway: 30 * time.Second,
		now:    time.Now,
	}
}

// Issue signs a token for the subject. Refresh tokens get a fresh UUID jti
// so the ledger can track them individually.
func (c *Codec) Issue(subject string, kind Kind, ttl time.Duration) (Issued, error) {
	now := c.now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"kind": string(kind),
		"iss":  c.issuer,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	var id string
	if kind == KindRefresh {
		id = uuid.NewString()
		claims["jti"] = id
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ID: id, ExpiresAt: exp}, nil
}

// Verify parses the token, checks its signature and expiry, and enforces
// that its kind matches want. Refresh tokens additionally must carry a jti.
func (c *Codec) Verify(raw string, want Kind) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
	)
	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalidSignature
	}
	if !tok.Valid {
		return Claims{}, ErrInvalidSignature
	}

	kind, _ := claims["kind"].(string)
	if Kind(kind) != want {
		return Claims{}, ErrKindMismatch
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidSignature
	}
	id, _ := claims["jti"].(string)
	if want == KindRefresh && id == "" {
		return Claims{}, ErrInvalidSignature
	}

	out := Claims{Subject: sub, ID: id, Kind: Kind(kind)}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// HashID returns the SHA-256 hash of a token id as a hex string. The
// ledger stores only this hash, so a leaked database cannot be used to
// mint valid rotation requests.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
