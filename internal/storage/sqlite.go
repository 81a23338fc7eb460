package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn    *sql.DB
	dataDir string // root directory for image and export files
}

// New creates a new DB, opening (or creating) the SQLite file at dbPath.
// dataDir is the root directory where image files are stored.
func New(dbPath, dataDir string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	for _, sub := range []string{"images", "previews", "exports", "thumbs"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer — limit to single connection to prevent SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, dataDir: dataDir}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DataDir returns the root data directory.
func (db *DB) DataDir() string {
	return db.dataDir
}

// ImagesDir returns the directory holding full-resolution source images.
func (db *DB) ImagesDir() string {
	return filepath.Join(db.dataDir, "images")
}

// PreviewsDir returns the directory holding cropped preview bitmaps.
func (db *DB) PreviewsDir() string {
	return filepath.Join(db.dataDir, "previews")
}

// ExportsDir returns the directory holding rendered export files.
func (db *DB) ExportsDir() string {
	return filepath.Join(db.dataDir, "exports")
}

// ThumbsDir returns the directory holding composition thumbnails.
func (db *DB) ThumbsDir() string {
	return filepath.Join(db.dataDir, "thumbs")
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS compositions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT 'freeform',
			doc_json TEXT NOT NULL,
			thumb_path TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS crops (
			id TEXT PRIMARY KEY,
			image_id TEXT NOT NULL,
			x REAL NOT NULL DEFAULT 0,
			y REAL NOT NULL DEFAULT 0,
			width REAL NOT NULL DEFAULT 0,
			height REAL NOT NULL DEFAULT 0,
			original_width REAL NOT NULL DEFAULT 0,
			original_height REAL NOT NULL DEFAULT 0,
			rotation REAL NOT NULL DEFAULT 0,
			filter TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crops_image ON crops(image_id)`,
		`CREATE TABLE IF NOT EXISTS exports (
			id TEXT PRIMARY KEY,
			composition_id TEXT NOT NULL,
			page_index INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			format TEXT NOT NULL DEFAULT 'png',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_composition ON exports(composition_id)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}

	return nil
}
