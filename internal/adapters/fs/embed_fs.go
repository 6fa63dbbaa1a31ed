package fs

import (
	"errors"
	iofs "io/fs"
)

var ErrReadOnly = errors.New("filesystem is read-only")

// ReadOnlyFileSystem exposes an io/fs.FS, such as an embedded scaffold,
// through the FileSystem port.
type ReadOnlyFileSystem struct {
	fsys iofs.FS
}

func NewReadOnlyFileSystem(fsys iofs.FS) *ReadOnlyFileSystem {
	return &ReadOnlyFileSystem{fsys: fsys}
}

func (fs *ReadOnlyFileSystem) ReadFile(path string) ([]byte, error) {
	return iofs.ReadFile(fs.fsys, path)
}

func (fs *ReadOnlyFileSystem) ReadDir(path string) ([]iofs.DirEntry, error) {
	return iofs.ReadDir(fs.fsys, path)
}

func (fs *ReadOnlyFileSystem) FileExists(path string) bool {
	_, err := iofs.Stat(fs.fsys, path)
	return err == nil
}

func (fs *ReadOnlyFileSystem) WalkDir(root string, fn iofs.WalkDirFunc) error {
	return iofs.WalkDir(fs.fsys, root, fn)
}

func (fs *ReadOnlyFileSystem) WriteFile(string, []byte, iofs.FileMode) error {
	return ErrReadOnly
}

func (fs *ReadOnlyFileSystem) MkdirAll(string, iofs.FileMode) error {
	return ErrReadOnly
}

func (fs *ReadOnlyFileSystem) CopyFile(string, string) error {
	return ErrReadOnly
}

func (fs *ReadOnlyFileSystem) Remove(string) error {
	return ErrReadOnly
}

func (fs *ReadOnlyFileSystem) Writable(string) error {
	return ErrReadOnly
}
