package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo is the refresh-token ledger. Rows are keyed by the SHA-256 hex
// of the token id; the signed token itself never touches the database.
type TokenRepo struct {
	db *sql.DB
}

// NewTokenRepo constructs a TokenRepo with the given DB handle.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

const insertToken = `INSERT INTO refresh_tokens (identity_id, token_hash, expires_at) VALUES (?,?,?)`

// Record inserts an active ledger entry for a freshly issued refresh token.
func (r *TokenRepo) Record(ctx context.Context, identityID uint64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, insertToken, identityID, tokenHash, expiresAt.UTC())
	return err
}

// RecordTx behaves like Record inside the caller's transaction.
func (r *TokenRepo) RecordTx(ctx context.Context, tx *sql.Tx, identityID uint64, tokenHash string, expiresAt time.Time) error {
	_, err := tx.ExecContext(ctx, insertToken, identityID, tokenHash, expiresAt.UTC())
	return err
}

// IsActive returns the owning identity id if a non-revoked, non-expired
// entry exists for the hash; otherwise ErrNotFound. Expired rows are
// reported as absent without waiting for the sweep to remove them.
func (r *TokenRepo) IsActive(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		identityID uint64
		expiresAt  time.Time
		revokedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT identity_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = ? LIMIT 1`,
		tokenHash).Scan(&identityID, &expiresAt, &revokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if revokedAt.Valid {
		return 0, ErrNotFound
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, ErrNotFound
	}
	return identityID, nil
}

// Revoke marks an entry revoked. Revoking an unknown or already-revoked
// hash is a no-op so logout stays idempotent.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = ? AND revoked_at IS NULL`,
		tokenHash)
	return err
}

// RevokeActive revokes the entry only if it is still active, reporting
// whether this call did the revoking. Rotation proceeds only on true, so
// two concurrent refreshes of one token produce exactly one winner: the
// loser's conditional update matches zero rows.
func (r *TokenRepo) RevokeActive(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW()
		 WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > NOW()`,
		tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllForIdentity revokes every active entry belonging to an identity.
func (r *TokenRepo) RevokeAllForIdentity(ctx context.Context, identityID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE identity_id = ? AND revoked_at IS NULL`,
		identityID)
	return err
}

// DeleteExpired removes rows whose expiry has passed, returning how many
// were swept. Revoked-but-unexpired rows are kept until expiry so a replay
// of a rotated token keeps failing on the revocation check.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
