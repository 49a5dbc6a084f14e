// Package corpus resolves configured root paths into the set of corpus roots
// that operations run against.
package corpus

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/manifest"
	"github.com/starford/kvault/internal/models"
	"github.com/starford/kvault/internal/storage"
)

// IndexDir is the directory inside a root that holds the ranked index.
const IndexDir = ".index"

// Root is one corpus directory and its manifest.
type Root struct {
	path  string
	fs    *storage.FS
	store *manifest.Store
}

// NewRoot opens an existing directory as a root.
func NewRoot(path string) (*Root, error) {
	fs, err := storage.NewFS(path)
	if err != nil {
		return nil, err
	}
	return &Root{path: fs.Root(), fs: fs, store: manifest.NewStore(fs)}, nil
}

// Init creates path if needed and writes an empty manifest unless one is
// already there. created reports whether a manifest was written.
func Init(path string) (root *Root, created bool, err error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, false, apperr.IO("init", path, err)
	}
	if root, err = NewRoot(path); err != nil {
		return nil, false, err
	}
	if created, err = root.store.Init(); err != nil {
		return nil, false, err
	}
	return root, created, nil
}

// Path returns the absolute root directory.
func (r *Root) Path() string { return r.path }

// Storage returns the root's file provider.
func (r *Root) Storage() storage.Provider { return r.fs }

// Store returns the root's manifest store.
func (r *Root) Store() *manifest.Store { return r.store }

// IndexPath returns the directory the ranked index for this root lives in.
func (r *Root) IndexPath() string { return filepath.Join(r.path, IndexDir) }

// Manifest loads the current manifest. A missing or malformed manifest is
// reported here, to the operation that needs it.
func (r *Root) Manifest() (*models.Manifest, error) {
	return r.store.Load()
}

// Registry is the ordered, immutable set of roots for a process.
type Registry struct {
	roots []*Root
}

// Open keeps the configured paths that exist as directories, in order.
// Missing paths are skipped; duplicates of an earlier root are dropped.
func Open(paths []string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	reg := &Registry{}
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			logger.Debug("corpus: skipping root", slog.String("root", p))
			continue
		}
		root, err := NewRoot(p)
		if err != nil {
			logger.Debug("corpus: skipping root",
				slog.String("root", p),
				slog.String("error", err.Error()))
			continue
		}
		if _, dup := seen[root.Path()]; dup {
			continue
		}
		seen[root.Path()] = struct{}{}
		reg.roots = append(reg.roots, root)
	}
	return reg
}

// Roots returns the roots in configuration order.
func (r *Registry) Roots() []*Root {
	out := make([]*Root, len(r.roots))
	copy(out, r.roots)
	return out
}

// Len returns the number of roots.
func (r *Registry) Len() int { return len(r.roots) }

// Root returns the i-th root.
func (r *Registry) Root(i int) (*Root, error) {
	if len(r.roots) == 0 {
		return nil, apperr.ErrNoRoots
	}
	if i < 0 || i >= len(r.roots) {
		return nil, fmt.Errorf("corpus: root index %d out of range (have %d)", i, len(r.roots))
	}
	return r.roots[i], nil
}

// Primary returns the first root, which receives new documents by default.
func (r *Registry) Primary() (*Root, error) {
	return r.Root(0)
}
