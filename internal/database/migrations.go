package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the statements executed by Migrate, in order.  Every
// statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL DEFAULT 'VIEWER',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS areas (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL,
		x INT NOT NULL DEFAULT 0,
		y INT NOT NULL DEFAULT 0,
		width INT NOT NULL DEFAULT 100,
		height INT NOT NULL DEFAULT 100,
		highlight VARCHAR(32) NULL,
		capacity INT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT chk_area_size CHECK (width > 0 AND height > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS thresholds (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		area_id BIGINT UNSIGNED NOT NULL,
		upper_bound INT NOT NULL,
		color VARCHAR(32) NOT NULL,
		alert TINYINT(1) NOT NULL DEFAULT 0,
		alert_message VARCHAR(255) NULL,
		UNIQUE KEY uq_threshold_bound (area_id, upper_bound),
		CONSTRAINT fk_threshold_area FOREIGN KEY (area_id) REFERENCES areas(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS visitor_snapshots (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		area_id BIGINT UNSIGNED NOT NULL,
		visitors INT UNSIGNED NOT NULL,
		observed_at DATETIME(3) NOT NULL,
		KEY idx_snapshot_area_time (area_id, observed_at),
		CONSTRAINT fk_snapshot_area FOREIGN KEY (area_id) REFERENCES areas(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables used by the service when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
