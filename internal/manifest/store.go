// Package manifest loads and persists the per-root manifest.json catalogue.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/lockfile"
	"github.com/starford/kvault/internal/models"
	"github.com/starford/kvault/internal/storage"
)

// FileName is the manifest file name inside every corpus root.
const FileName = "manifest.json"

const lockName = ".kvault.lock"

// Store reads and writes one root's manifest.
type Store struct {
	fs storage.Provider
}

// NewStore creates a Store over the given root.
func NewStore(p storage.Provider) *Store {
	return &Store{fs: p}
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.fs.Root()
}

// Path returns the absolute manifest path.
func (s *Store) Path() string {
	return filepath.Join(s.fs.Root(), FileName)
}

// Load reads and decodes the manifest. It does not check that listed files
// exist.
func (s *Store) Load() (*models.Manifest, error) {
	_, m, err := s.LoadRaw()
	return m, err
}

// LoadRaw is Load that also returns the bytes the manifest was decoded from.
func (s *Store) LoadRaw() ([]byte, *models.Manifest, error) {
	data, err := s.fs.Read(FileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, apperr.Path("", s.fs.Root(), apperr.ErrManifestNotFound, nil)
		}
		return nil, nil, err
	}
	m, err := Decode(s.fs.Root(), data)
	if err != nil {
		return nil, nil, err
	}
	return data, m, nil
}

// Decode parses manifest bytes read from root.
func Decode(root string, data []byte) (*models.Manifest, error) {
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.Path("", root, apperr.ErrManifestParse, err)
	}
	if m.Documents == nil {
		m.Documents = []models.Document{}
	}
	for i := range m.Documents {
		if m.Documents[i].Tags == nil {
			m.Documents[i].Tags = []string{}
		}
	}
	return &m, nil
}

// Save writes the whole manifest atomically.
func (s *Store) Save(m *models.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperr.IO("encode", s.Path(), err)
	}
	return s.fs.Write(FileName, append(data, '\n'))
}

// Update runs fn against a freshly loaded manifest while holding the root's
// lock, then saves the manifest if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(*models.Manifest) error) error {
	lock, err := lockfile.Acquire(ctx, filepath.Join(s.fs.Root(), lockName))
	if err != nil {
		return apperr.IO("lock", s.Root(), err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("manifest: release lock failed",
				slog.String("root", s.Root()),
				slog.String("error", err.Error()))
		}
	}()

	m, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	return s.Save(m)
}

// Init creates an empty manifest unless one already exists. It reports
// whether a file was written.
func (s *Store) Init() (bool, error) {
	if s.fs.Exists(FileName) {
		return false, nil
	}
	if err := s.Save(models.NewManifest()); err != nil {
		return false, err
	}
	return true, nil
}
