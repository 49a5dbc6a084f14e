// Package index provides the per-root ranked search index: an inverted index
// persisted in SQLite and scored with BM25, with bounded edit-distance term
// expansion for fuzzy queries.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/kvault/internal/apperr"
)

// FileName is the index database file inside a root's index directory.
const FileName = "kvault.db"

const schemaVersion = "1"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS docs (
	path     TEXT PRIMARY KEY,
	title    TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	tags     TEXT NOT NULL DEFAULT '[]',
	length   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
	term TEXT NOT NULL,
	path TEXT NOT NULL,
	tf   INTEGER NOT NULL,
	PRIMARY KEY (term, path)
);

CREATE INDEX IF NOT EXISTS idx_postings_path ON postings(path);
`

// Meta keys.
const (
	metaSchema           = "schema_version"
	metaBuiltAt          = "built_at"
	metaDocCount         = "doc_count"
	metaTotalLength      = "total_length"
	metaManifestChecksum = "manifest_checksum"
)

// File returns the index database path for a root directory.
func File(indexDir string) string {
	return filepath.Join(indexDir, FileName)
}

// Exists reports whether an index database has been built in indexDir.
func Exists(indexDir string) bool {
	info, err := os.Stat(File(indexDir))
	return err == nil && info.Mode().IsRegular()
}

// openWritable creates (or opens) a database for building and applies the
// schema. The rollback journal is used so the finished file is self-contained
// and can be renamed into place.
func openWritable(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=DELETE&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return conn, nil
}

// openReadOnly opens a built index for querying.
func openReadOnly(indexDir string) (*sql.DB, error) {
	path := File(indexDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Path("", filepath.Dir(indexDir), apperr.ErrIndexMissing,
				fmt.Errorf("run `kvault index` to build it"))
		}
		return nil, apperr.IO("stat", path, err)
	}
	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	return conn, nil
}
