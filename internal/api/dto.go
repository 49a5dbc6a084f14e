package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/models"
)

// CreateDocumentRequest is the request body for adding a document.
type CreateDocumentRequest struct {
	Title    string `json:"title" example:"Ownership" validate:"required"`
	Category string `json:"category" example:"rust" validate:"required"`
	Tags     string `json:"tags" example:"memory,borrowing"`
	Content  string `json:"content" example:"# Ownership\nEach value has one owner." validate:"required"`
	Root     int    `json:"root" example:"0"`
	// Infer fills missing title, category and tags from frontmatter.
	Infer bool `json:"infer" example:"false"`
}

// Validate checks request shape. Field rules are enforced by docservice.
func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.When(!r.Infer, validation.Required)),
		validation.Field(&r.Category, validation.When(!r.Infer, validation.Required)),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.Root, validation.Min(0)),
	)
}

func (r CreateDocumentRequest) toAdd() docservice.AddRequest {
	req := docservice.AddRequest{
		Root:     r.Root,
		Title:    r.Title,
		Category: r.Category,
		Tags:     r.Tags,
		Content:  r.Content,
	}
	if r.Infer {
		docservice.InferMetadata(&req)
	}
	return req
}

// DocumentListResponse wraps a document listing.
type DocumentListResponse struct {
	Documents []docservice.Entry `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// DocumentResponse is a single document with its content.
type DocumentResponse struct {
	Path    string `json:"path" example:"rust/ownership.md" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// AdvisoryDTO names a root, or a file within it, skipped during a search.
type AdvisoryDTO struct {
	Root  string `json:"root" validate:"required"`
	Error string `json:"error" validate:"required"`
}

// SearchResponse wraps merged search results.
type SearchResponse struct {
	Results    []models.SearchResult `json:"results" validate:"required"`
	Advisories []AdvisoryDTO         `json:"advisories" validate:"required"`
}

// IndexRootResult reports one root of an index build.
type IndexRootResult struct {
	Root      string   `json:"root" validate:"required"`
	Documents int      `json:"documents"`
	Terms     int      `json:"terms"`
	Skipped   []string `json:"skipped,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// IndexResponse wraps per-root build outcomes.
type IndexResponse struct {
	Roots []IndexRootResult `json:"roots" validate:"required"`
}

func toSearchResponse(resp *models.SearchResponse) SearchResponse {
	out := SearchResponse{Results: resp.Results, Advisories: []AdvisoryDTO{}}
	for _, a := range resp.Advisories {
		out.Advisories = append(out.Advisories, AdvisoryDTO{Root: a.Root, Error: a.Message()})
	}
	return out
}
