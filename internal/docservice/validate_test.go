package docservice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/kvault/internal/apperr"
)

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Lambda patterns"))
	assert.NoError(t, ValidateTitle(strings.Repeat("é", MaxTitleLength)))
	assert.ErrorIs(t, ValidateTitle(""), apperr.ErrEmptyTitle)
	assert.ErrorIs(t, ValidateTitle("   \t"), apperr.ErrEmptyTitle)

	err := ValidateTitle(strings.Repeat("a", 201))
	require.ErrorIs(t, err, apperr.ErrTitleTooLong)
	assert.Contains(t, err.Error(), "201")
	assert.Contains(t, err.Error(), "200")
}

func TestValidateCategory(t *testing.T) {
	for _, ok := range []string{"go", "aws-lambda", "my_cat", "9lives", "A1"} {
		assert.NoError(t, ValidateCategory(ok), ok)
	}

	cases := []struct {
		in   string
		want error
		char string
	}{
		{"../etc", apperr.ErrInvalidCategoryChar, `'.'`},
		{"a/b", apperr.ErrInvalidCategoryChar, `'/'`},
		{"has space", apperr.ErrInvalidCategoryChar, `' '`},
		{"café", apperr.ErrInvalidCategoryChar, `'é'`},
		{"-lead", apperr.ErrCategoryMustStartAlnum, ""},
		{"_lead", apperr.ErrCategoryMustStartAlnum, ""},
		{"", apperr.ErrCategoryMustStartAlnum, ""},
	}
	for _, tc := range cases {
		err := ValidateCategory(tc.in)
		require.ErrorIs(t, err, tc.want, tc.in)
		if tc.char != "" {
			assert.Contains(t, err.Error(), tc.char, tc.in)
		}
	}
}

func TestParseTags(t *testing.T) {
	tags, err := ParseTags(" go, , lambda ,aws_1,")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "lambda", "aws_1"}, tags)

	tags, err = ParseTags("  tag1  ,  tag2  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag1", "tag2"}, tags)

	tags, err = ParseTags("tag1,,tag2,")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag1", "tag2"}, tags)

	tags, err = ParseTags("")
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)

	_, err = ParseTags("ok, bad tag")
	require.ErrorIs(t, err, apperr.ErrInvalidTagChar)
	assert.Contains(t, err.Error(), "bad tag")

	_, err = ParseTags("-x")
	assert.ErrorIs(t, err, apperr.ErrInvalidTagChar)
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("body"))
	assert.ErrorIs(t, ValidateContent(" \n\t "), apperr.ErrEmptyContent)
}

func TestValidatePath(t *testing.T) {
	for _, ok := range []string{"go/intro.md", "a..b/c.md", "x.md"} {
		assert.NoError(t, ValidatePath(ok), ok)
	}
	for _, bad := range []string{"", "../x.md", "a/../../x.md", `a\..\x.md`, "/etc/passwd", "..", `C:\x.md`} {
		assert.ErrorIs(t, ValidatePath(bad), apperr.ErrInvalidPath, bad)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":              "hello-world",
		"  AWS Lambda: Patterns! ": "aws-lambda-patterns",
		"Café au lait":             "cafe-au-lait",
		"Straße & Ærø":             "strasse-aero",
		"İstanbul":                 "istanbul",
		"a---b___c":                "a-b-c",
		"v1.2.3 release":           "v1-2-3-release",
		"日本語":                      "",
		"!!!":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}

	s := Slugify("AWS Lambda: Best Practices!")
	assert.Equal(t, "aws-lambda-best-practices", s)
	assert.Equal(t, s, Slugify(s))
}
