package models

import (
	"strings"

	"github.com/starford/kvault/internal/apperr"
)

// Backend selects how a root is searched.
type Backend string

const (
	BackendPlain  Backend = "plain"
	BackendRanked Backend = "ranked"
	BackendAuto   Backend = "auto"
)

// ParseBackend accepts plain, ranked or auto. "ripgrep" and "tantivy" are
// accepted as older names for plain and ranked.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BackendAuto, nil
	case "plain", "ripgrep", "rg":
		return BackendPlain, nil
	case "ranked", "tantivy", "bm25":
		return BackendRanked, nil
	default:
		return "", apperr.Detail(apperr.ErrInvalidBackend, "%q (expected plain, ranked or auto)", s)
	}
}

// LineMatch is one matching line reported by the plain backend.
type LineMatch struct {
	Document Document
	Line     int
	Text     string
}

// ScoredMatch is one document reported by the ranked backend.
type ScoredMatch struct {
	Document     Document
	Score        float64
	MatchedTerms []string
}

// SearchResult is a merged hit. Plain hits carry Line and Text; ranked hits
// carry Score.
type SearchResult struct {
	Root     string   `json:"root"`
	Document Document `json:"document"`
	Line     int      `json:"line,omitempty"`
	Text     string   `json:"text,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Backend  Backend  `json:"backend"`
}

// Advisory records a root, or a file within it, that could not be searched.
type Advisory struct {
	Root string `json:"root"`
	Err  error  `json:"-"`
}

// Message returns the advisory text.
func (a Advisory) Message() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}

// SearchResponse is the outcome of one dispatched query.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Advisories []Advisory     `json:"advisories"`
}
