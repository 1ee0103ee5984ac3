package database

import (
	"context"
	"database/sql"
)

// Statements run one by one: the MySQL driver rejects multi-statement
// Exec calls unless multiStatements is enabled in the DSN.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NULL,
		provider VARCHAR(64) NOT NULL DEFAULT 'local',
		external_id VARCHAR(191) NULL,
		picture_url VARCHAR(512) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		is_verified TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		last_login_at DATETIME NULL,
		UNIQUE KEY uq_identities_email (email)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		identity_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_identity (identity_id),
		CONSTRAINT fk_refresh_tokens_identity
			FOREIGN KEY (identity_id) REFERENCES identities(id)
	) ENGINE=InnoDB`,
}

// Migrate creates the credential tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
