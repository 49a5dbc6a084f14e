package render

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
)

func plainPrinter() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinter(&out, &errOut, false), &out, &errOut
}

func TestSearchResults_Empty(t *testing.T) {
	p, out, _ := plainPrinter()
	p.SearchResults("nothing", &models.SearchResponse{})
	assert.Equal(t, "No matches found for 'nothing'\n", out.String())
}

func TestSearchResults_MixedAndAdvisories(t *testing.T) {
	p, out, errOut := plainPrinter()
	score := 1.5
	p.SearchResults("go", &models.SearchResponse{
		Results: []models.SearchResult{
			{Document: models.Document{Path: "go/a.md", Title: "A", Category: "go"}, Score: &score},
			{Document: models.Document{Path: "go/b.md", Title: "B", Category: "go"}, Line: 4, Text: "  go routines  "},
		},
		Advisories: []models.Advisory{{Root: "/kb", Err: errors.New("manifest not found")}},
	})
	assert.Contains(t, out.String(), "go/a.md score 1.500")
	assert.Contains(t, out.String(), "go/b.md:4\n  go routines\n")
	assert.Contains(t, out.String(), "2 result(s)")
	assert.Contains(t, errOut.String(), "warning: skipped /kb: manifest not found")
}

func TestDocuments(t *testing.T) {
	p, out, _ := plainPrinter()
	p.Documents(nil)
	assert.Equal(t, "No documents found.\n", out.String())

	out.Reset()
	p.Documents([]docservice.Entry{{
		File:     "/kb/go/a.md",
		Document: models.Document{Path: "go/a.md", Title: "A", Category: "go", Tags: []string{"x", "y"}},
	}})
	assert.Equal(t, "go: A [x, y]\n  /kb/go/a.md\n", out.String())
}

func TestBuiltAndStatus(t *testing.T) {
	p, out, errOut := plainPrinter()
	p.Built(&index.BuildStats{Root: "/kb", Documents: 3, Terms: 10, Skipped: []string{"x.md"}, Duration: time.Second})
	assert.Contains(t, out.String(), "Indexed /kb: 3 documents, 10 terms")
	assert.Contains(t, errOut.String(), "could not read x.md")

	out.Reset()
	p.Status(&index.Status{Root: "/kb"})
	assert.Contains(t, out.String(), "not indexed")

	out.Reset()
	p.Status(&index.Status{Root: "/kb", Built: true, Stale: true, Meta: index.Meta{DocCount: 2, BuiltAt: time.Now()}})
	assert.Contains(t, out.String(), "stale")
}

func TestContentAddsTrailingNewline(t *testing.T) {
	p, out, _ := plainPrinter()
	p.Content("body")
	assert.Equal(t, "body\n", out.String())
}

func TestMarkdownSearch(t *testing.T) {
	assert.Equal(t, "No matches found for 'q'", MarkdownSearch("q", &models.SearchResponse{}))

	md := MarkdownSearch("q", &models.SearchResponse{Results: []models.SearchResult{
		{Document: models.Document{Path: "a/b.md", Title: "B"}, Line: 2, Text: "the q line"},
	}})
	assert.Equal(t, "## B\n**File:** a/b.md\n**Line 2:** the q line\n\n*1 result(s) found*", md)
}

func TestMarkdownList(t *testing.T) {
	md := MarkdownList([]docservice.Entry{{Document: models.Document{Path: "go/a.md", Title: "A", Category: "go", Tags: []string{}}}})
	assert.Equal(t, "- **go**: A\n  `go/a.md`\n", md)
	assert.Equal(t, "No documents found.", MarkdownList(nil))
}

func TestMarkdownAdded(t *testing.T) {
	md := MarkdownAdded(&models.Document{Path: "go/a.md", Title: "A", Category: "go"})
	assert.Contains(t, md, "- **Path:** go/a.md")
}
