// CLAUDE:SUMMARY SQLite schema for the media cache index.
package mediacache

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS media_entries (
	url           TEXT PRIMARY KEY,
	file_path     TEXT NOT NULL,
	content_type  TEXT NOT NULL DEFAULT '',
	media_type    TEXT NOT NULL DEFAULT 'image',
	brand_name    TEXT NOT NULL DEFAULT '',
	ad_id         TEXT NOT NULL DEFAULT '',
	size_bytes    INTEGER NOT NULL DEFAULT 0,
	analysis_json TEXT,
	created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_media_entries_created ON media_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_media_entries_media_type ON media_entries(media_type);
CREATE INDEX IF NOT EXISTS idx_media_entries_file ON media_entries(file_path);
`

// ApplySchema creates the media cache tables. Idempotent.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
