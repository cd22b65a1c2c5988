// Package storage defines the project file-system abstraction and the
// JSON index store built on top of it.
package storage

// Provider is the interface for project file operations. All paths are
// slash-separated and relative to the current project root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// List returns the root-relative paths of files under dir with suffix ext.
	List(dir, ext string) ([]string, error)
}
