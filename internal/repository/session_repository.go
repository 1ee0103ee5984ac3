package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dkoval/authgate/internal/model"
)

// SessionRepo groups the identity write and the refresh-ledger record of a
// federated login into a single transaction, so the callback either fully
// creates/updates the identity and records the session or persists nothing.
type SessionRepo struct {
	db         *sql.DB
	identities *IdentityRepo
	tokens     *TokenRepo
}

// NewSessionRepo constructs a SessionRepo over the shared DB handle.
func NewSessionRepo(db *sql.DB, identities *IdentityRepo, tokens *TokenRepo) *SessionRepo {
	return &SessionRepo{db: db, identities: identities, tokens: tokens}
}

// CreateFederated inserts the identity, invokes mint with the assigned id
// to obtain the refresh-token ledger entry, records it, and commits. Any
// failure rolls the whole unit back.
func (r *SessionRepo) CreateFederated(ctx context.Context, ident *model.Identity, mint func(id uint64) (tokenHash string, expiresAt time.Time, err error)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.identities.CreateTx(ctx, tx, ident); err != nil {
		return err
	}
	tokenHash, expiresAt, err := mint(ident.ID)
	if err != nil {
		return err
	}
	if err := r.tokens.RecordTx(ctx, tx, ident.ID, tokenHash, expiresAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UpdateFederated persists the identity changes and records the refresh
// session in one transaction.
func (r *SessionRepo) UpdateFederated(ctx context.Context, ident *model.Identity, tokenHash string, expiresAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.identities.UpdateTx(ctx, tx, ident); err != nil {
		return err
	}
	if err := r.tokens.RecordTx(ctx, tx, ident.ID, tokenHash, expiresAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
