package docservice

import (
	"strings"

	"github.com/starford/kvault/internal/parser"
)

// InferMetadata fills an empty Title, Category or Tags from the content's
// frontmatter (title, category, tags) or, for the title, its first H1
// heading. Fields already set are left alone. The content is stored
// unchanged.
func InferMetadata(req *AddRequest) {
	if strings.TrimSpace(req.Title) != "" && strings.TrimSpace(req.Category) != "" && strings.TrimSpace(req.Tags) != "" {
		return
	}
	meta := parser.Parse([]byte(req.Content))
	if strings.TrimSpace(req.Title) == "" {
		req.Title = meta.Title
	}
	if strings.TrimSpace(req.Category) == "" {
		req.Category = meta.Category
	}
	if strings.TrimSpace(req.Tags) == "" {
		req.Tags = strings.Join(meta.Tags, ",")
	}
}
