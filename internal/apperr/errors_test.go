package apperr

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathError_UnwrapsKindAndCause(t *testing.T) {
	err := IO("write", "go/intro.md", fs.ErrPermission)

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, "write go/intro.md: io error: permission denied", err.Error())

	var pe *PathError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "go/intro.md", pe.Path)
}

func TestPathError_NoCause(t *testing.T) {
	err := Path("", "/data/kb", ErrManifestNotFound, nil)
	assert.ErrorIs(t, err, ErrManifestNotFound)
	assert.Equal(t, "/data/kb: manifest not found", err.Error())
}

func TestDetail(t *testing.T) {
	err := Detail(ErrTitleTooLong, "%d characters (max %d)", 201, 200)
	assert.ErrorIs(t, err, ErrTitleTooLong)
	assert.Equal(t, "title too long: 201 characters (max 200)", err.Error())
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Detail(ErrInvalidTagChar, "x")))
	assert.True(t, IsValidation(ErrQueryTooLong))
	assert.False(t, IsValidation(ErrNotFound))
	assert.False(t, IsValidation(IO("read", "a.md", fs.ErrNotExist)))
}
