// Package fs is the filesystem port used by the build use cases.
package fs

import (
	iofs "io/fs"
)

// FileSystem abstracts the site and output trees. Paths are native paths
// for the OS implementation and slash paths for io/fs backed ones.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]iofs.DirEntry, error)
	WalkDir(root string, fn iofs.WalkDirFunc) error
	FileExists(path string) bool
	// WriteFile creates missing parent directories.
	WriteFile(path string, data []byte, perm iofs.FileMode) error
	MkdirAll(path string, perm iofs.FileMode) error
	// CopyFile copies src to dst, creating dst's parents and keeping the mode.
	CopyFile(src, dst string) error
	// Remove deletes a file. A missing file is not an error.
	Remove(path string) error
	// Writable creates dir if needed and checks it with a temporary file.
	Writable(dir string) error
}

var (
	_ FileSystem = (*OSFileSystem)(nil)
	_ FileSystem = (*ReadOnlyFileSystem)(nil)
)
