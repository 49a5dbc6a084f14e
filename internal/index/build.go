package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/checksum"
	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/lockfile"
)

// BuildStats summarises one index build.
type BuildStats struct {
	Root      string
	Documents int
	Terms     int
	Skipped   []string
	Duration  time.Duration
}

// Build indexes every document listed in root's manifest and replaces the
// root's index in one rename. Listed documents that cannot be read are
// skipped and reported in BuildStats.Skipped.
func Build(ctx context.Context, root *corpus.Root, logger *slog.Logger) (*BuildStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	indexDir := root.IndexPath()

	lock, err := lockfile.Acquire(ctx, filepath.Join(indexDir, ".build.lock"))
	if err != nil {
		return nil, apperr.IO("lock", indexDir, err)
	}
	defer lock.Release() //nolint:errcheck

	raw, m, err := root.Store().LoadRaw()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(indexDir, ".kvault-index-*.db")
	if err != nil {
		return nil, apperr.IO("create temp index in", indexDir, err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
			_ = os.Remove(tmpName + "-journal")
		}
	}()

	conn, err := openWritable(tmpName)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	docStmt, err := tx.Prepare(`INSERT INTO docs (path, title, category, tags, length) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("index: prepare doc insert: %w", err)
	}
	defer docStmt.Close()
	postStmt, err := tx.Prepare(`INSERT INTO postings (term, path, tf) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("index: prepare posting insert: %w", err)
	}
	defer postStmt.Close()

	stats := &BuildStats{Root: root.Path(), Skipped: []string{}}
	vocab := make(map[string]struct{})
	seen := make(map[string]struct{}, len(m.Documents))
	totalLength := 0

	for _, doc := range m.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := seen[doc.Path]; dup {
			continue
		}
		seen[doc.Path] = struct{}{}

		content, err := root.Storage().Read(doc.Path)
		if err != nil {
			logger.Warn("index: skipping unreadable document",
				slog.String("root", root.Path()),
				slog.String("path", doc.Path),
				slog.String("error", err.Error()))
			stats.Skipped = append(stats.Skipped, doc.Path)
			continue
		}

		tokens := Tokenize(doc.Title + "\n" + string(content))
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}

		tagsJSON, _ := json.Marshal(doc.Tags)
		if _, err := docStmt.Exec(doc.Path, doc.Title, doc.Category, string(tagsJSON), len(tokens)); err != nil {
			return nil, fmt.Errorf("index: insert doc %s: %w", doc.Path, err)
		}
		for term, n := range tf {
			if _, err := postStmt.Exec(term, doc.Path, n); err != nil {
				return nil, fmt.Errorf("index: insert posting %s: %w", doc.Path, err)
			}
			vocab[term] = struct{}{}
		}
		totalLength += len(tokens)
		stats.Documents++
	}

	meta := map[string]string{
		metaSchema:           schemaVersion,
		metaBuiltAt:          time.Now().UTC().Format(time.RFC3339),
		metaDocCount:         strconv.Itoa(stats.Documents),
		metaTotalLength:      strconv.Itoa(totalLength),
		metaManifestChecksum: checksum.Sum(raw),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return nil, fmt.Errorf("index: write meta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit: %w", err)
	}
	if err := conn.Close(); err != nil {
		return nil, fmt.Errorf("index: close: %w", err)
	}
	if err := os.Rename(tmpName, File(indexDir)); err != nil {
		return nil, apperr.IO("rename", File(indexDir), err)
	}
	success = true

	stats.Terms = len(vocab)
	stats.Duration = time.Since(start)
	logger.Info("index: built",
		slog.String("root", root.Path()),
		slog.Int("documents", stats.Documents),
		slog.Int("terms", stats.Terms),
		slog.Int("skipped", len(stats.Skipped)),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}
