package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dkoval/authgate/internal/model"
)

// IdentityRepo manages persistence for identity records.
type IdentityRepo struct {
	db *sql.DB
}

// NewIdentityRepo constructs an IdentityRepo with the given DB handle.
func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{db: db} }

// DB exposes the underlying sql.DB. It allows callers to begin
// transactions spanning the identity and ledger repositories.
func (r *IdentityRepo) DB() *sql.DB { return r.db }

const identityColumns = `id, email, display_name, password_hash, provider,
	external_id, picture_url, is_active, is_verified, created_at, updated_at,
	last_login_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (model.Identity, error) {
	var (
		ident      model.Identity
		pwHash     sql.NullString
		externalID sql.NullString
		pictureURL sql.NullString
		lastLogin  sql.NullTime
	)
	err := row.Scan(
		&ident.ID, &ident.Email, &ident.DisplayName, &pwHash, &ident.Provider,
		&externalID, &pictureURL, &ident.IsActive, &ident.IsVerified,
		&ident.CreatedAt, &ident.UpdatedAt, &lastLogin,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Identity{}, ErrNotFound
		}
		return model.Identity{}, err
	}
	ident.PasswordHash = pwHash.String
	ident.ExternalID = externalID.String
	ident.PictureURL = pictureURL.String
	if lastLogin.Valid {
		t := lastLogin.Time
		ident.LastLoginAt = &t
	}
	return ident, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const insertIdentity = `INSERT INTO identities
	(email, display_name, password_hash, provider, external_id, picture_url, is_active, is_verified)
	VALUES (?,?,?,?,?,?,?,?)`

// Create inserts an identity and assigns the generated ID plus DB-default
// timestamps back onto the struct. Email is stored lower-cased.
func (r *IdentityRepo) Create(ctx context.Context, ident *model.Identity) error {
	return r.create(ctx, r.db, ident)
}

// CreateTx behaves like Create but participates in the caller's
// transaction. The caller must commit or roll back.
func (r *IdentityRepo) CreateTx(ctx context.Context, tx *sql.Tx, ident *model.Identity) error {
	return r.create(ctx, tx, ident)
}

// execQuerier is the subset of sql.DB/sql.Tx the write paths need.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *IdentityRepo) create(ctx context.Context, q execQuerier, ident *model.Identity) error {
	ident.Email = strings.ToLower(strings.TrimSpace(ident.Email))
	res, err := q.ExecContext(ctx, insertIdentity,
		ident.Email, ident.DisplayName, nullIfEmpty(ident.PasswordHash),
		ident.Provider, nullIfEmpty(ident.ExternalID), nullIfEmpty(ident.PictureURL),
		ident.IsActive, ident.IsVerified,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ident.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM identities WHERE id = ?`
	return q.QueryRowContext(ctx, sel, ident.ID).Scan(&ident.CreatedAt, &ident.UpdatedAt)
}

// GetByEmail fetches an identity by normalized email.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ? LIMIT 1`, email)
	return scanIdentity(row)
}

// GetByID fetches an identity by id.
func (r *IdentityRepo) GetByID(ctx context.Context, id uint64) (model.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ? LIMIT 1`, id)
	return scanIdentity(row)
}

const updateIdentity = `UPDATE identities SET
	display_name = ?, password_hash = ?, external_id = ?, picture_url = ?,
	is_active = ?, is_verified = ?, last_login_at = ?
	WHERE id = ?`

// Update persists the mutable fields of an identity. Email and provider are
// immutable after creation and deliberately absent from the statement.
func (r *IdentityRepo) Update(ctx context.Context, ident *model.Identity) error {
	return r.update(ctx, r.db, ident)
}

// UpdateTx behaves like Update inside the caller's transaction.
func (r *IdentityRepo) UpdateTx(ctx context.Context, tx *sql.Tx, ident *model.Identity) error {
	return r.update(ctx, tx, ident)
}

func (r *IdentityRepo) update(ctx context.Context, q execQuerier, ident *model.Identity) error {
	var lastLogin sql.NullTime
	if ident.LastLoginAt != nil {
		lastLogin = sql.NullTime{Time: ident.LastLoginAt.UTC(), Valid: true}
	}
	_, err := q.ExecContext(ctx, updateIdentity,
		ident.DisplayName, nullIfEmpty(ident.PasswordHash), nullIfEmpty(ident.ExternalID),
		nullIfEmpty(ident.PictureURL), ident.IsActive, ident.IsVerified, lastLogin,
		ident.ID,
	)
	return err
}

// TouchLastLogin stamps last_login_at without rewriting the whole row.
func (r *IdentityRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
	return err
}
