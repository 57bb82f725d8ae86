package state

import (
	"database/sql"
)

const currentSchemaVersion = 2

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			opacity REAL NOT NULL,
			speed REAL NOT NULL,
			font_size REAL NOT NULL,
			height_ratio REAL NOT NULL,
			source_filter INTEGER NOT NULL DEFAULT 0,
			motion_filter INTEGER NOT NULL DEFAULT 0,
			density INTEGER NOT NULL DEFAULT 0,
			font_family TEXT NOT NULL DEFAULT '',
			font_weight INTEGER NOT NULL DEFAULT 400
		);

		CREATE TABLE IF NOT EXISTS series_offsets (
			series TEXT PRIMARY KEY,
			offset_ms INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS positions (
			path TEXT PRIMARY KEY,
			position_ms INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_series_offsets_updated ON series_offsets(updated_at DESC);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: font columns were added in version 2
	_, _ = db.Exec(`ALTER TABLE settings ADD COLUMN font_family TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE settings ADD COLUMN font_weight INTEGER NOT NULL DEFAULT 400`)

	return nil
}
