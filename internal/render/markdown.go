package render

import (
	"fmt"
	"strings"

	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/models"
)

// MarkdownSearch formats search results for tool consumers.
func MarkdownSearch(query string, resp *models.SearchResponse) string {
	if len(resp.Results) == 0 && len(resp.Advisories) == 0 {
		return fmt.Sprintf("No matches found for '%s'", query)
	}
	var b strings.Builder
	if len(resp.Results) == 0 {
		fmt.Fprintf(&b, "No matches found for '%s'\n\n", query)
	}
	for _, r := range resp.Results {
		fmt.Fprintf(&b, "## %s\n**File:** %s\n", r.Document.Title, r.Document.Path)
		if r.Score != nil {
			fmt.Fprintf(&b, "**Score:** %.3f\n\n", *r.Score)
		} else {
			fmt.Fprintf(&b, "**Line %d:** %s\n\n", r.Line, strings.TrimSpace(r.Text))
		}
	}
	if len(resp.Results) > 0 {
		fmt.Fprintf(&b, "*%d result(s) found*", len(resp.Results))
	}
	for _, a := range resp.Advisories {
		fmt.Fprintf(&b, "\n> skipped %s: %s", a.Root, a.Message())
	}
	return b.String()
}

// MarkdownList formats a document listing.
func MarkdownList(entries []docservice.Entry) string {
	if len(entries) == 0 {
		return "No documents found."
	}
	var b strings.Builder
	for _, e := range entries {
		tags := ""
		if len(e.Document.Tags) > 0 {
			tags = " [" + strings.Join(e.Document.Tags, ", ") + "]"
		}
		fmt.Fprintf(&b, "- **%s**: %s%s\n  `%s`\n", e.Document.Category, e.Document.Title, tags, e.Document.Path)
	}
	return b.String()
}

// MarkdownAdded confirms a new document.
func MarkdownAdded(doc *models.Document) string {
	return fmt.Sprintf("Added document:\n- **Title:** %s\n- **Category:** %s\n- **Path:** %s",
		doc.Title, doc.Category, doc.Path)
}
