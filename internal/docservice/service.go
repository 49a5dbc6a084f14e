// Package docservice implements adding, reading and listing corpus documents
// across the configured roots.
package docservice

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/models"
)

// AddRequest describes a new document. Tags is the raw comma-separated list.
// Root selects the target root by position; zero is the first root.
type AddRequest struct {
	Root     int
	Title    string
	Category string
	Tags     string
	Content  string
}

// Entry is a listed document together with where it lives.
type Entry struct {
	Root     string          `json:"root"`
	File     string          `json:"file"`
	Document models.Document `json:"document"`
}

// Service coordinates the registry, manifests and document files.
type Service struct {
	reg    *corpus.Registry
	logger *slog.Logger
}

// NewService creates a document service over reg.
func NewService(reg *corpus.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reg: reg, logger: logger}
}

// Registry returns the roots this service operates on.
func (s *Service) Registry() *corpus.Registry {
	return s.reg
}

// Add validates req, writes the content to <category>/<slug>.md and appends
// the manifest entry. The manifest is only written after the content write
// succeeds.
func (s *Service) Add(ctx context.Context, req AddRequest) (*models.Document, error) {
	if err := ValidateTitle(req.Title); err != nil {
		return nil, err
	}
	if err := ValidateCategory(req.Category); err != nil {
		return nil, err
	}
	tags, err := ParseTags(req.Tags)
	if err != nil {
		return nil, err
	}
	if err := ValidateContent(req.Content); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	slug := Slugify(title)
	if slug == "" {
		return nil, apperr.Detail(apperr.ErrEmptySlug, "%q", title)
	}

	root, err := s.reg.Root(req.Root)
	if err != nil {
		return nil, err
	}

	doc := models.Document{
		Path:     req.Category + "/" + slug + ".md",
		Title:    title,
		Category: req.Category,
		Tags:     tags,
	}

	err = root.Store().Update(ctx, func(m *models.Manifest) error {
		if m.Has(doc.Path) {
			return apperr.Path("add", doc.Path, apperr.ErrAlreadyExists, nil)
		}
		if err := root.Storage().Write(doc.Path, []byte(req.Content)); err != nil {
			return err
		}
		m.Documents = append(m.Documents, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document added",
		slog.String("root", root.Path()),
		slog.String("path", doc.Path))
	return &doc, nil
}

// Get returns the content of the document listed at path in the first root
// whose manifest has it. Files that exist on disk but are not listed are not
// returned.
func (s *Service) Get(_ context.Context, path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	var loadErr error
	for _, root := range s.reg.Roots() {
		m, err := root.Manifest()
		if err != nil {
			s.logger.Debug("get: manifest unavailable",
				slog.String("root", root.Path()),
				slog.String("error", err.Error()))
			if loadErr == nil {
				loadErr = err
			}
			continue
		}
		if !m.Has(path) {
			continue
		}
		data, err := root.Storage().Read(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	// A root whose manifest could not be read may hold the document.
	if loadErr != nil {
		return "", loadErr
	}
	return "", apperr.Path("get", path, apperr.ErrNotFound, nil)
}

// List returns documents in root order then manifest order, optionally
// restricted to an exact category.
func (s *Service) List(_ context.Context, category *string) ([]Entry, error) {
	out := []Entry{}
	for _, root := range s.reg.Roots() {
		m, err := root.Manifest()
		if err != nil {
			return nil, err
		}
		for _, d := range m.Filter(category) {
			out = append(out, Entry{
				Root:     root.Path(),
				File:     filepath.Join(root.Path(), filepath.FromSlash(d.Path)),
				Document: d,
			})
		}
	}
	return out, nil
}
