package fs

import (
	"context"
	"io"
	"os"
)

// FileInfo is a wrapper for os.FileInfo that also returns the full path of the file.
//
// FullPath is required to support globs with ReadDir()
type FileInfo interface {
	os.FileInfo
	FullPath() string
}

type Filesystem interface {
	Close() error
	ReadDir(name string) ([]FileInfo, error)
	Stat(name string) (os.FileInfo, error)
}

type FilesystemRW interface {
	Filesystem
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, data io.Reader) (os.FileInfo, error)
}

// VirtualFilesystem is a FilesystemRW with full tree manipulation, enough to
// back a file server and to seed or inspect test fixtures. Backends are
// interchangeable; nothing above this interface knows where the bytes live.
type VirtualFilesystem interface {
	FilesystemRW
	WriteFile(path string, content []byte) error
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string) error
	Remove(path string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
	Exists(path string) (bool, error)
}
