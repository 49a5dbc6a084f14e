package docservice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/manifest"
	"github.com/starford/kvault/internal/testutil"
)

func newService(t *testing.T, dirs ...string) *Service {
	t.Helper()
	return NewService(testutil.Registry(t, dirs...), nil)
}

func TestAdd_WritesFileAndManifest(t *testing.T) {
	dir := testutil.NewRoot(t)
	svc := newService(t, dir)

	doc, err := svc.Add(context.Background(), AddRequest{
		Title:    "  Lambda Cold Starts ",
		Category: "aws",
		Tags:     "serverless, perf",
		Content:  "Keep functions warm.\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "aws/lambda-cold-starts.md", doc.Path)
	assert.Equal(t, "Lambda Cold Starts", doc.Title)
	assert.Equal(t, []string{"serverless", "perf"}, doc.Tags)

	data, err := os.ReadFile(filepath.Join(dir, "aws", "lambda-cold-starts.md"))
	require.NoError(t, err)
	assert.Equal(t, "Keep functions warm.\n", string(data))

	root, err := svc.Registry().Primary()
	require.NoError(t, err)
	m, err := root.Manifest()
	require.NoError(t, err)
	require.Len(t, m.Documents, 1)
	assert.Equal(t, *doc, m.Documents[0])

	got, err := svc.Get(context.Background(), doc.Path)
	require.NoError(t, err)
	assert.Equal(t, "Keep functions warm.\n", got)
}

func TestAdd_Duplicate(t *testing.T) {
	dir := testutil.NewRoot(t)
	svc := newService(t, dir)
	req := AddRequest{Title: "Same", Category: "c", Content: "x"}

	_, err := svc.Add(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), req)
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "c/same.md")
}

func TestAdd_ValidationOrder(t *testing.T) {
	svc := newService(t, testutil.NewRoot(t))
	ctx := context.Background()

	_, err := svc.Add(ctx, AddRequest{Title: " ", Category: "../x", Content: ""})
	assert.ErrorIs(t, err, apperr.ErrEmptyTitle)

	_, err = svc.Add(ctx, AddRequest{Title: "t", Category: "../x", Content: ""})
	assert.ErrorIs(t, err, apperr.ErrInvalidCategoryChar)

	_, err = svc.Add(ctx, AddRequest{Title: "t", Category: "ok", Tags: "a b", Content: ""})
	assert.ErrorIs(t, err, apperr.ErrInvalidTagChar)

	_, err = svc.Add(ctx, AddRequest{Title: "t", Category: "ok", Content: "  "})
	assert.ErrorIs(t, err, apperr.ErrEmptyContent)

	_, err = svc.Add(ctx, AddRequest{Title: "???", Category: "ok", Content: "c"})
	assert.ErrorIs(t, err, apperr.ErrEmptySlug)

	_, err = svc.Add(ctx, AddRequest{Title: strings.Repeat("x", 201), Category: "ok", Content: "c"})
	assert.ErrorIs(t, err, apperr.ErrTitleTooLong)
}

func TestAdd_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir)

	_, err := svc.Add(context.Background(), AddRequest{Title: "T", Category: "c", Content: "x"})
	require.ErrorIs(t, err, apperr.ErrManifestNotFound)
	_, statErr := os.Stat(filepath.Join(dir, "c", "t.md"))
	assert.True(t, os.IsNotExist(statErr), "content must not be written without a manifest")
}

func TestAdd_WriteFailureLeavesManifestUnchanged(t *testing.T) {
	dir := testutil.NewRoot(t)
	// A file where the category directory should be makes the write fail.
	testutil.WriteFile(t, dir, "blocked", "not a dir")
	svc := newService(t, dir)

	before, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), AddRequest{Title: "T", Category: "blocked", Content: "x"})
	require.ErrorIs(t, err, apperr.ErrIO)

	after, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAdd_TargetsSelectedRoot(t *testing.T) {
	a := testutil.NewRoot(t)
	b := testutil.NewRoot(t)
	svc := newService(t, a, b)

	_, err := svc.Add(context.Background(), AddRequest{Root: 1, Title: "B doc", Category: "c", Content: "x"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(b, "c", "b-doc.md"))
	assert.NoFileExists(t, filepath.Join(a, "c", "b-doc.md"))

	_, err = svc.Add(context.Background(), AddRequest{Root: 5, Title: "x", Category: "c", Content: "x"})
	assert.Error(t, err)
}

func TestAdd_NoRoots(t *testing.T) {
	svc := newService(t)
	_, err := svc.Add(context.Background(), AddRequest{Title: "T", Category: "c", Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrNoRoots)
}

func TestGet(t *testing.T) {
	a := testutil.NewRoot(t,
		testutil.Doc{Path: "go/a.md", Title: "A", Category: "go", Content: "from a"},
		testutil.Doc{Path: "go/orphan.md", Content: "hidden", Orphan: true},
		testutil.Doc{Path: "go/missing.md", Title: "M", Category: "go", NoFile: true},
	)
	b := testutil.NewRoot(t,
		testutil.Doc{Path: "go/a.md", Title: "A2", Category: "go", Content: "from b"},
		testutil.Doc{Path: "rust/b.md", Title: "B", Category: "rust", Content: "from b only"},
	)
	svc := newService(t, a, b)
	ctx := context.Background()

	got, err := svc.Get(ctx, "go/a.md")
	require.NoError(t, err)
	assert.Equal(t, "from a", got, "first root wins")

	got, err = svc.Get(ctx, "rust/b.md")
	require.NoError(t, err)
	assert.Equal(t, "from b only", got)

	_, err = svc.Get(ctx, "go/orphan.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, "go/missing.md")
	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, "../secret.md")
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
}

func TestGet_TraversalRejectedWithoutRoots(t *testing.T) {
	svc := newService(t)
	for _, p := range []string{"a/../../b.md", "../../../etc/passwd"} {
		_, err := svc.Get(context.Background(), p)
		assert.ErrorIs(t, err, apperr.ErrInvalidPath, p)
	}

	_, err := svc.Get(context.Background(), "a/b.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGet_BrokenManifestReported(t *testing.T) {
	broken := t.TempDir()
	svc := newService(t, broken)
	_, err := svc.Get(context.Background(), "x/y.md")
	assert.ErrorIs(t, err, apperr.ErrManifestNotFound)
}

func TestList(t *testing.T) {
	a := testutil.NewRoot(t,
		testutil.Doc{Path: "go/a.md", Title: "A", Category: "go", Content: "a"},
		testutil.Doc{Path: "rust/r.md", Title: "R", Category: "rust", Content: "r"},
	)
	b := testutil.NewRoot(t,
		testutil.Doc{Path: "go/b.md", Title: "B", Category: "go", Content: "b"},
	)
	svc := newService(t, a, b)
	ctx := context.Background()

	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "go/a.md", all[0].Document.Path)
	assert.Equal(t, "rust/r.md", all[1].Document.Path)
	assert.Equal(t, "go/b.md", all[2].Document.Path)
	assert.Equal(t, filepath.Join(b, "go", "b.md"), all[2].File)

	cat := "go"
	goDocs, err := svc.List(ctx, &cat)
	require.NoError(t, err)
	assert.Len(t, goDocs, 2)

	upper := "Go"
	none, err := svc.List(ctx, &upper)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestList_ManifestErrorAborts(t *testing.T) {
	good := testutil.NewRoot(t, testutil.Doc{Path: "a/b.md", Title: "B", Category: "a", Content: "x"})
	bad := t.TempDir()
	testutil.WriteFile(t, bad, "manifest.json", "{")
	svc := newService(t, good, bad)

	_, err := svc.List(context.Background(), nil)
	require.ErrorIs(t, err, apperr.ErrManifestParse)
	assert.Contains(t, err.Error(), bad)
}
