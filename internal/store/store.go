package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for source declarations and
// imported metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
-- Source tables

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS classes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  fq_name         TEXT NOT NULL,
  name            TEXT NOT NULL,
  package         TEXT NOT NULL,
  kind            TEXT NOT NULL,
  visibility      TEXT,
  modifiers       TEXT,
  is_primary      BOOLEAN NOT NULL DEFAULT 0,
  is_holder       BOOLEAN NOT NULL DEFAULT 0,
  type_params     TEXT,
  supertypes      TEXT,
  signature_hash  TEXT,
  outer_class_id  INTEGER REFERENCES classes(id)
);

CREATE TABLE IF NOT EXISTS members (
  id                INTEGER PRIMARY KEY,
  class_id          INTEGER NOT NULL REFERENCES classes(id),
  name              TEXT NOT NULL,
  kind              TEXT NOT NULL,
  ordinal           INTEGER NOT NULL,
  visibility        TEXT,
  modifiers         TEXT,
  type_expr         TEXT,
  type_params       TEXT,
  is_synthetic      BOOLEAN NOT NULL DEFAULT 0,
  has_body          BOOLEAN NOT NULL DEFAULT 0,
  property_accessor BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS member_params (
  id              INTEGER PRIMARY KEY,
  member_id       INTEGER NOT NULL REFERENCES members(id),
  name            TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  type_expr       TEXT,
  is_receiver     BOOLEAN NOT NULL DEFAULT 0
);

-- Metadata tables

CREATE TABLE IF NOT EXISTS metadata_entries (
  id              INTEGER PRIMARY KEY,
  fq_name         TEXT NOT NULL,
  kind            TEXT NOT NULL,
  names           TEXT NOT NULL,
  payload         BLOB NOT NULL,
  source          TEXT,
  imported_at     TIMESTAMP,
  UNIQUE(fq_name, kind)
);

CREATE TABLE IF NOT EXISTS settings (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

-- Indexes

CREATE INDEX IF NOT EXISTS idx_classes_fq_name ON classes(fq_name);
CREATE INDEX IF NOT EXISTS idx_classes_package ON classes(package);
CREATE INDEX IF NOT EXISTS idx_classes_file ON classes(file_id);
CREATE INDEX IF NOT EXISTS idx_classes_outer ON classes(outer_class_id);
CREATE INDEX IF NOT EXISTS idx_members_class ON members(class_id);
CREATE INDEX IF NOT EXISTS idx_member_params_member ON member_params(member_id);
CREATE INDEX IF NOT EXISTS idx_metadata_entries_fq_name ON metadata_entries(fq_name);
`

// DeleteFileData removes every class, member and parameter extracted from
// a file. The file row itself is kept.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete file data: begin: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM member_params WHERE member_id IN (
			SELECT m.id FROM members m JOIN classes c ON m.class_id = c.id WHERE c.file_id = ?)`,
		`DELETE FROM members WHERE class_id IN (SELECT id FROM classes WHERE file_id = ?)`,
		// Nested rows first, so outer_class_id never dangles mid-statement.
		`DELETE FROM classes WHERE file_id = ? AND outer_class_id IS NOT NULL`,
		`DELETE FROM classes WHERE file_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteFile removes a file and everything extracted from it.
func (s *Store) DeleteFile(fileID int64) error {
	if err := s.DeleteFileData(fileID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Setting returns a stored setting, or "" when it was never set.
func (s *Store) Setting(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("setting %s: %w", key, err)
	}
	return v, nil
}

// SetSetting stores a setting, replacing any previous value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
