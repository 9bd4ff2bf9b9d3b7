package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the DDL for every table, one statement per entry so the
// MySQL driver can execute them without multi-statement support.
// Statements are idempotent; EnsureSchema runs at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name     VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL,
		is_active     TINYINT(1)   NOT NULL DEFAULT 1,
		created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_email (email)
	)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)  NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		revoked_at TIMESTAMP NULL DEFAULT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id)
	)`,

	`CREATE TABLE IF NOT EXISTS equipment_groups (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		name       VARCHAR(255) NOT NULL,
		created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id)
	)`,

	`CREATE TABLE IF NOT EXISTS equipment (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		nomenclature  VARCHAR(255) NOT NULL,
		serial_number VARCHAR(128) NULL,
		stock_number  VARCHAR(128) NULL,
		group_id      BIGINT UNSIGNED NULL,
		holder_id     BIGINT UNSIGNED NULL,
		version       BIGINT UNSIGNED NOT NULL DEFAULT 1,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_equipment_serial (serial_number),
		KEY idx_equipment_group (group_id),
		KEY idx_equipment_holder (holder_id),
		CONSTRAINT fk_equipment_group FOREIGN KEY (group_id) REFERENCES equipment_groups (id)
	)`,

	`CREATE TABLE IF NOT EXISTS custody_receipts (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		receipt_number VARCHAR(64)  NOT NULL,
		holder_id      BIGINT UNSIGNED NOT NULL,
		status         VARCHAR(16)  NOT NULL,
		document_ref   VARCHAR(255) NOT NULL DEFAULT '',
		issued_at      TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		returned_at    TIMESTAMP    NULL DEFAULT NULL,
		created_at     TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_custody_receipts_number (receipt_number),
		KEY idx_custody_receipts_holder (holder_id),
		CONSTRAINT fk_custody_receipts_holder FOREIGN KEY (holder_id) REFERENCES users (id)
	)`,

	`CREATE TABLE IF NOT EXISTS custody_receipt_items (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		receipt_id   BIGINT UNSIGNED NOT NULL,
		equipment_id BIGINT UNSIGNED NOT NULL,
		returned_at  TIMESTAMP NULL DEFAULT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_receipt_items_line (receipt_id, equipment_id),
		KEY idx_receipt_items_equipment (equipment_id),
		CONSTRAINT fk_receipt_items_receipt FOREIGN KEY (receipt_id) REFERENCES custody_receipts (id),
		CONSTRAINT fk_receipt_items_equipment FOREIGN KEY (equipment_id) REFERENCES equipment (id)
	)`,

	`CREATE TABLE IF NOT EXISTS accountability_sessions (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		scope_id     VARCHAR(64) NOT NULL,
		authority_id BIGINT UNSIGNED NOT NULL,
		status       VARCHAR(16) NOT NULL,
		item_count   INT         NOT NULL DEFAULT 0,
		created_at   TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP,
		closed_at    TIMESTAMP   NULL DEFAULT NULL,
		active_scope VARCHAR(64) GENERATED ALWAYS AS (IF(status = 'ACTIVE', scope_id, NULL)) STORED,
		PRIMARY KEY (id),
		UNIQUE KEY uq_sessions_active_scope (active_scope),
		KEY idx_sessions_scope_status (scope_id, status),
		CONSTRAINT fk_sessions_authority FOREIGN KEY (authority_id) REFERENCES users (id)
	)`,

	`CREATE TABLE IF NOT EXISTS accountability_items (
		id                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		session_id          BIGINT UNSIGNED NOT NULL,
		equipment_id        BIGINT UNSIGNED NOT NULL,
		nomenclature        VARCHAR(255) NOT NULL,
		serial_number       VARCHAR(128) NULL,
		holder_id           BIGINT UNSIGNED NOT NULL,
		status              VARCHAR(24) NOT NULL,
		method              VARCHAR(16) NOT NULL DEFAULT '',
		confirmation_status VARCHAR(16) NOT NULL DEFAULT '',
		verified_by         BIGINT UNSIGNED NULL,
		verified_at         TIMESTAMP NULL DEFAULT NULL,
		confirmed_at        TIMESTAMP NULL DEFAULT NULL,
		version             BIGINT UNSIGNED NOT NULL DEFAULT 1,
		created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_items_session_equipment (session_id, equipment_id),
		KEY idx_items_session_status (session_id, status),
		KEY idx_items_serial (serial_number),
		CONSTRAINT fk_items_session FOREIGN KEY (session_id) REFERENCES accountability_sessions (id),
		CONSTRAINT fk_items_equipment FOREIGN KEY (equipment_id) REFERENCES equipment (id)
	)`,
}

// EnsureSchema creates any missing tables. Safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
