// Package apperr defines the error conditions shared by the corpus, document
// and search layers. Callers compare with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Document validation.
var (
	ErrEmptyTitle             = errors.New("title cannot be empty")
	ErrTitleTooLong           = errors.New("title too long")
	ErrInvalidCategoryChar    = errors.New("category contains invalid character")
	ErrCategoryMustStartAlnum = errors.New("category must start with a letter or digit")
	ErrInvalidTagChar         = errors.New("tag contains invalid character")
	ErrEmptyContent           = errors.New("content cannot be empty")
	ErrEmptySlug              = errors.New("title does not produce a usable file name")
)

// Repository.
var (
	ErrNotFound         = errors.New("document not found")
	ErrAlreadyExists    = errors.New("document already exists")
	ErrInvalidPath      = errors.New("invalid document path")
	ErrManifestNotFound = errors.New("manifest not found")
	ErrManifestParse    = errors.New("manifest parse error")
	ErrIO               = errors.New("io error")
	ErrNoRoots          = errors.New("no corpus roots available")
)

// Search.
var (
	ErrBackendUnavailable = errors.New("search backend unavailable")
	ErrIndexMissing       = errors.New("search index missing")
	ErrQueryTooLong       = errors.New("query too long")
	ErrInvalidQuery       = errors.New("invalid query")
	ErrInvalidFuzzy       = errors.New("invalid fuzzy distance")
	ErrInvalidBackend     = errors.New("invalid search backend")
)

// PathError ties an error condition to the root or document path it concerns.
// Both Kind and Err are reachable through errors.Is and errors.As.
type PathError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *PathError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + " " + e.Path + ": " + msg
	} else if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PathError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Path wraps cause as kind for the given operation and path.
func Path(op, path string, kind, cause error) error {
	return &PathError{Op: op, Path: path, Kind: kind, Err: cause}
}

// IO wraps a filesystem failure with the path that was attempted.
func IO(op, path string, cause error) error {
	return &PathError{Op: op, Path: path, Kind: ErrIO, Err: cause}
}

// Detail attaches a human-readable detail to a sentinel.
func Detail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}

var validation = []error{
	ErrEmptyTitle,
	ErrTitleTooLong,
	ErrInvalidCategoryChar,
	ErrCategoryMustStartAlnum,
	ErrInvalidTagChar,
	ErrEmptyContent,
	ErrEmptySlug,
	ErrInvalidPath,
	ErrQueryTooLong,
	ErrInvalidQuery,
	ErrInvalidFuzzy,
	ErrInvalidBackend,
}

// IsValidation reports whether err was caused by rejected caller input.
func IsValidation(err error) bool {
	for _, v := range validation {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
