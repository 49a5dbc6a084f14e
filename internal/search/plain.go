package search

import (
	"context"
	"errors"
	"os"

	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/models"
)

// Plain searches manifest-listed documents line by line through a
// LineSearcher.
type Plain struct {
	lines LineSearcher
}

// NewPlain creates a plain backend.
func NewPlain(lines LineSearcher) *Plain {
	return &Plain{lines: lines}
}

// Search returns every line of docs containing query. docs must already be
// filtered to the candidate set; files outside it are never searched.
//
// Listed documents whose file is missing or unreadable do not stop the
// search: the matches from the other files are returned with a
// *PartialError naming each failed document.
func (p *Plain) Search(ctx context.Context, root *corpus.Root, docs []models.Document, query string, caseSensitive bool) ([]models.LineMatch, error) {
	byFile := make(map[string]models.Document, len(docs))
	files := make([]string, 0, len(docs))
	var failed []error
	for _, d := range docs {
		abs, err := root.Storage().Abs(d.Path)
		if err != nil {
			failed = append(failed, err)
			continue
		}
		if _, dup := byFile[abs]; dup {
			continue
		}
		if err := checkReadable(abs); err != nil {
			failed = append(failed, apperr.IO("search", d.Path, err))
			continue
		}
		byFile[abs] = d
		files = append(files, abs)
	}

	out := []models.LineMatch{}
	if len(files) > 0 {
		raw, err := p.lines.Search(ctx, LineQuery{Pattern: query, Files: files, CaseSensitive: caseSensitive})
		var partial *PartialError
		switch {
		case errors.As(err, &partial):
			failed = append(failed, partial.Errs...)
		case err != nil:
			return nil, err
		}
		for _, m := range raw {
			d, ok := byFile[m.File]
			if !ok {
				continue
			}
			out = append(out, models.LineMatch{Document: d, Line: m.Line, Text: m.Text})
		}
	}
	if len(failed) > 0 {
		return out, &PartialError{Errs: failed}
	}
	return out, nil
}

func checkReadable(abs string) error {
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}
	return nil
}
