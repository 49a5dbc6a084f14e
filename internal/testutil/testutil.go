// Package testutil provides shared test helpers for building corpus roots.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/models"
)

// Doc is a document fixture. Orphan writes the file without listing it;
// NoFile lists it without writing the file.
type Doc struct {
	Path     string
	Title    string
	Category string
	Tags     []string
	Content  string
	Orphan   bool
	NoFile   bool
}

// NewRoot creates a temporary corpus root containing docs and a manifest
// listing them in order.
func NewRoot(t *testing.T, docs ...Doc) string {
	t.Helper()
	dir := t.TempDir()
	m := models.NewManifest()
	for _, d := range docs {
		if !d.NoFile {
			WriteFile(t, dir, d.Path, d.Content)
		}
		if d.Orphan {
			continue
		}
		tags := d.Tags
		if tags == nil {
			tags = []string{}
		}
		m.Documents = append(m.Documents, models.Document{
			Path:     d.Path,
			Title:    d.Title,
			Category: d.Category,
			Tags:     tags,
		})
	}
	WriteManifest(t, dir, m)
	return dir
}

// WriteManifest writes m as dir/manifest.json.
func WriteManifest(t *testing.T, dir string, m *models.Manifest) {
	t.Helper()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteFile writes content at dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Registry opens dirs as a registry.
func Registry(t *testing.T, dirs ...string) *corpus.Registry {
	t.Helper()
	return corpus.Open(dirs, nil)
}
