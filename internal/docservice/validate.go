package docservice

import (
	"strings"
	"unicode/utf8"

	"github.com/starford/kvault/internal/apperr"
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 200

// ValidateTitle rejects blank titles and titles over MaxTitleLength.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return apperr.ErrEmptyTitle
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxTitleLength {
		return apperr.Detail(apperr.ErrTitleTooLong, "%d characters (max %d)", n, MaxTitleLength)
	}
	return nil
}

// ValidateCategory accepts ASCII letters, digits, '-' and '_', starting with
// a letter or digit. Dots, spaces and separators are rejected, so a category
// can never form a path outside its root.
func ValidateCategory(category string) error {
	if category == "" {
		return apperr.Detail(apperr.ErrCategoryMustStartAlnum, "category is empty")
	}
	if r, ok := firstInvalid(category); ok {
		return apperr.Detail(apperr.ErrInvalidCategoryChar, "%q in %q (allowed: letters, digits, '-' and '_')", r, category)
	}
	if r, _ := utf8.DecodeRuneInString(category); !isAlnum(r) {
		return apperr.Detail(apperr.ErrCategoryMustStartAlnum, "%q starts with %q", category, r)
	}
	return nil
}

// ParseTags splits a comma-separated list, trims each tag, drops empty ones
// and validates the rest with the category character rule.
func ParseTags(raw string) ([]string, error) {
	tags := []string{}
	for _, piece := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(piece)
		if tag == "" {
			continue
		}
		if r, ok := firstInvalid(tag); ok {
			return nil, apperr.Detail(apperr.ErrInvalidTagChar, "tag %q has %q (allowed: letters, digits, '-' and '_')", tag, r)
		}
		if r, _ := utf8.DecodeRuneInString(tag); !isAlnum(r) {
			return nil, apperr.Detail(apperr.ErrInvalidTagChar, "tag %q must start with a letter or digit", tag)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// ValidateContent rejects whitespace-only content.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.ErrEmptyContent
	}
	return nil
}

// ValidatePath rejects document paths that are empty, absolute or contain a
// ".." component under either separator.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return apperr.Detail(apperr.ErrInvalidPath, "path is empty")
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) || (len(path) > 1 && path[1] == ':') {
		return apperr.Detail(apperr.ErrInvalidPath, "%q is absolute", path)
	}
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return apperr.Detail(apperr.ErrInvalidPath, "%q contains '..'", path)
		}
	}
	return nil
}

func firstInvalid(s string) (rune, bool) {
	for _, r := range s {
		if !isAlnum(r) && r != '-' && r != '_' {
			return r, true
		}
	}
	return 0, false
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
