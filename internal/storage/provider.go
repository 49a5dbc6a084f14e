// Package storage defines the corpus root file-system abstraction.
package storage

// Provider is the interface for file operations within one corpus root.
// All paths are relative to the root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Abs resolves path against the root, rejecting escapes.
	Abs(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
}
