// Package filesystem abstracts filesystem operations for testing.
package filesystem

import "io/fs"

// FileSystem is the capability used by the chain-spec engine and the
// persistence layer. The real backend delegates to the os package; the
// in-memory backend keeps everything in a map for unit tests.
type FileSystem interface {
	// ReadFile returns the full contents of the named file.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if needed.
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// MkdirAll creates the named directory and any missing parents.
	MkdirAll(path string, perm fs.FileMode) error

	// Copy duplicates src into dst, overwriting dst if present.
	Copy(src, dst string) error

	// Exists reports whether the named path exists.
	Exists(name string) bool

	// Remove deletes the named file or empty directory.
	Remove(name string) error

	// RemoveAll deletes path and everything below it.
	RemoveAll(path string) error

	// Stat returns file information for the given path.
	Stat(name string) (fs.FileInfo, error)
}
