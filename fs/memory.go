package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// MemoryFS is an isolated, ephemeral filesystem held entirely in process
// memory. Every instance has its own tree; nothing is shared and nothing
// survives Close.
type MemoryFS struct {
	id      string
	closed  bool
	backing afero.Fs
}

type memoryFileInfo struct {
	os.FileInfo
	fullpath string
}

func (t memoryFileInfo) FullPath() string {
	return t.fullpath
}

// NewMemoryFS creates a fresh in-memory filesystem. The identifier
// distinguishes concurrently live instances.
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		id:      uuid.NewString(),
		backing: afero.NewMemMapFs(),
	}
}

func (t *MemoryFS) ID() string {
	return t.id
}

// Afero exposes the backing store for server backends that need random
// access to files.
func (t *MemoryFS) Afero() afero.Fs {
	return t.backing
}

// Close discards the tree. The instance is unusable afterwards.
func (t *MemoryFS) Close() error {
	t.closed = true
	t.backing = afero.NewMemMapFs()
	return nil
}

func (t *MemoryFS) guard() error {
	if t.closed {
		return fmt.Errorf("memory filesystem %s: %w", t.id, os.ErrClosed)
	}
	return nil
}

func (t *MemoryFS) ReadDir(name string) ([]FileInfo, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}

	if strings.Contains(name, "*") {
		return t.ReadDirGlob(name)
	}

	files, err := afero.ReadDir(t.backing, name)
	if err != nil {
		return nil, err
	}

	output := make([]FileInfo, 0, len(files))
	for _, file := range files {
		output = append(output, memoryFileInfo{FileInfo: file, fullpath: path.Join(name, file.Name())})
	}

	return output, nil
}

func (t *MemoryFS) ReadDirGlob(name string) ([]FileInfo, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}

	matches, err := afero.Glob(t.backing, name)
	if err != nil {
		return nil, err
	}

	output := make([]FileInfo, 0, len(matches))
	for _, match := range matches {
		info, err := t.backing.Stat(match)
		if err != nil {
			return nil, err
		}

		output = append(output, memoryFileInfo{FileInfo: info, fullpath: match})
	}

	return output, nil
}

func (t *MemoryFS) Stat(name string) (os.FileInfo, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}

	return t.backing.Stat(name)
}

func (t *MemoryFS) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}

	return t.backing.Open(path)
}

func (t *MemoryFS) Write(ctx context.Context, p string, data io.Reader) (os.FileInfo, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}

	if err := t.mkdirParent(p); err != nil {
		return nil, fmt.Errorf("error creating directory: %w", err)
	}

	f, err := t.backing.Create(p)
	if err != nil {
		return nil, fmt.Errorf("error creating file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		return nil, fmt.Errorf("error writing to file: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, err
	}

	return t.backing.Stat(p)
}

// WriteFile stores content at p, overwriting any existing file. Missing
// parent directories are created unless the parent is the root itself.
func (t *MemoryFS) WriteFile(p string, content []byte) error {
	if err := t.guard(); err != nil {
		return err
	}

	if err := t.mkdirParent(p); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	return afero.WriteFile(t.backing, p, content, 0644)
}

func (t *MemoryFS) ReadFile(p string) ([]byte, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}

	return afero.ReadFile(t.backing, p)
}

func (t *MemoryFS) MkdirAll(p string) error {
	if err := t.guard(); err != nil {
		return err
	}

	return t.backing.MkdirAll(p, 0755)
}

func (t *MemoryFS) Remove(p string) error {
	if err := t.guard(); err != nil {
		return err
	}

	return t.backing.Remove(p)
}

func (t *MemoryFS) RemoveAll(p string) error {
	if err := t.guard(); err != nil {
		return err
	}

	return t.backing.RemoveAll(p)
}

func (t *MemoryFS) Rename(oldpath, newpath string) error {
	if err := t.guard(); err != nil {
		return err
	}

	return t.backing.Rename(oldpath, newpath)
}

func (t *MemoryFS) Exists(p string) (bool, error) {
	if err := t.guard(); err != nil {
		return false, err
	}

	return afero.Exists(t.backing, p)
}

func (t *MemoryFS) mkdirParent(p string) error {
	parent := path.Dir(p)
	if parent == "/" || parent == "." {
		return nil
	}

	return t.backing.MkdirAll(parent, 0755)
}
