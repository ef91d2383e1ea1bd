package repository

import (
	"context"

	"github.com/joseph-ayodele/fichas-scanner/internal/common"
)

// Timestamps are stored as fixed-width UTC text so both backends sort them
// lexically.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scans (
		id             TEXT PRIMARY KEY,
		source         TEXT NOT NULL,
		status         TEXT NOT NULL,
		engine         TEXT,
		started_at     TEXT NOT NULL,
		finished_at    TEXT,
		duration_ms    BIGINT,
		ocr_text       TEXT,
		extracted_json TEXT,
		confidence     REAL,
		needs_review   BOOLEAN NOT NULL DEFAULT FALSE,
		error_message  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS scans_started_at_idx ON scans (started_at)`,
	`CREATE INDEX IF NOT EXISTS scans_status_idx ON scans (status)`,
}

// Migrate creates the scan history schema if missing.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			db.logger.Error("migration failed", "error", err)
			return common.Kind(common.ErrDatabase, err)
		}
	}
	db.logger.Info("database schema up to date", "dialect", db.Dialect)
	return nil
}
