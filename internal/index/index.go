package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/kvault/internal/models"
)

// Ranker is the query side of a built index.
// Consumers should depend on this interface rather than the concrete *DB type.
type Ranker interface {
	Query(ctx context.Context, opts QueryOptions) ([]models.ScoredMatch, error)
	Meta() Meta
	Close() error
}

// Verify *DB satisfies Ranker at compile time.
var _ Ranker = (*DB)(nil)

const expansionCacheSize = 1024

// Meta describes a built index.
type Meta struct {
	BuiltAt          time.Time
	DocCount         int
	TotalLength      int
	ManifestChecksum string
}

// AvgLength returns the mean document length in tokens.
func (m Meta) AvgLength() float64 {
	if m.DocCount == 0 {
		return 0
	}
	return float64(m.TotalLength) / float64(m.DocCount)
}

type docRow struct {
	doc    models.Document
	length int
}

// DB is an open, read-only index for one root.
type DB struct {
	conn       *sql.DB
	meta       Meta
	expansions *lru.Cache[expansionKey, []string]

	vocabOnce sync.Once
	vocab     []string
	vocabErr  error

	docsOnce sync.Once
	docs     map[string]docRow
	docsErr  error
}

// Open opens the index in indexDir. A missing index reports
// apperr.ErrIndexMissing.
func Open(indexDir string) (*DB, error) {
	conn, err := openReadOnly(indexDir)
	if err != nil {
		return nil, err
	}
	meta, err := readMeta(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	cache, err := lru.New[expansionKey, []string](expansionCacheSize)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: expansion cache: %w", err)
	}
	return &DB{conn: conn, meta: meta, expansions: cache}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Meta returns the build metadata.
func (db *DB) Meta() Meta {
	return db.meta
}

func readMeta(conn *sql.DB) (Meta, error) {
	rows, err := conn.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("index: read meta: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, fmt.Errorf("index: read meta: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, fmt.Errorf("index: read meta: %w", err)
	}
	if kv[metaSchema] != schemaVersion {
		return Meta{}, fmt.Errorf("index: unsupported schema version %q, rebuild with `kvault index`", kv[metaSchema])
	}

	var m Meta
	m.DocCount, _ = strconv.Atoi(kv[metaDocCount])
	m.TotalLength, _ = strconv.Atoi(kv[metaTotalLength])
	m.BuiltAt, _ = time.Parse(time.RFC3339, kv[metaBuiltAt])
	m.ManifestChecksum = kv[metaManifestChecksum]
	return m, nil
}

// vocabulary returns every indexed term, loaded once.
func (db *DB) vocabulary() ([]string, error) {
	db.vocabOnce.Do(func() {
		rows, err := db.conn.Query(`SELECT DISTINCT term FROM postings`)
		if err != nil {
			db.vocabErr = fmt.Errorf("index: vocabulary: %w", err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var term string
			if err := rows.Scan(&term); err != nil {
				db.vocabErr = fmt.Errorf("index: vocabulary: %w", err)
				return
			}
			db.vocab = append(db.vocab, term)
		}
		db.vocabErr = rows.Err()
	})
	return db.vocab, db.vocabErr
}

// documents returns every indexed document keyed by path, loaded once.
func (db *DB) documents() (map[string]docRow, error) {
	db.docsOnce.Do(func() {
		rows, err := db.conn.Query(`SELECT path, title, category, tags, length FROM docs`)
		if err != nil {
			db.docsErr = fmt.Errorf("index: documents: %w", err)
			return
		}
		defer rows.Close()
		db.docs = make(map[string]docRow)
		for rows.Next() {
			var (
				r        docRow
				tagsJSON string
			)
			if err := rows.Scan(&r.doc.Path, &r.doc.Title, &r.doc.Category, &tagsJSON, &r.length); err != nil {
				db.docsErr = fmt.Errorf("index: documents: %w", err)
				return
			}
			if err := json.Unmarshal([]byte(tagsJSON), &r.doc.Tags); err != nil || r.doc.Tags == nil {
				r.doc.Tags = []string{}
			}
			db.docs[r.doc.Path] = r
		}
		db.docsErr = rows.Err()
	})
	return db.docs, db.docsErr
}
