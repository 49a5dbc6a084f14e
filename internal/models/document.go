// Package models defines the corpus data types shared across packages.
package models

// ManifestVersion is written into newly created manifests.
const ManifestVersion = "1"

// Document is one manifest entry. Path is relative to its root and uses
// forward slashes.
type Document struct {
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Manifest is the per-root document catalogue stored as manifest.json.
type Manifest struct {
	Version   string     `json:"version"`
	Documents []Document `json:"documents"`
}

// NewManifest returns an empty manifest at the current version.
func NewManifest() *Manifest {
	return &Manifest{Version: ManifestVersion, Documents: []Document{}}
}

// Lookup returns the entry for path, if present.
func (m *Manifest) Lookup(path string) (Document, bool) {
	for _, d := range m.Documents {
		if d.Path == path {
			return d, true
		}
	}
	return Document{}, false
}

// Has reports whether path is listed.
func (m *Manifest) Has(path string) bool {
	_, ok := m.Lookup(path)
	return ok
}

// Filter returns the documents in manifest order, restricted to category
// when it is non-nil. Matching is exact and case-sensitive.
func (m *Manifest) Filter(category *string) []Document {
	out := make([]Document, 0, len(m.Documents))
	for _, d := range m.Documents {
		if category != nil && d.Category != *category {
			continue
		}
		out = append(out, d)
	}
	return out
}
