package fakesftp

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/JSchillinger/fake-sftp-server-lambda/fs"
)

// ErrNotRunning is returned by file helpers that are called before the
// fixture's setup has run or after its teardown has completed.
var ErrNotRunning = errors.New("test has not been started or is already finished")

// PutFile stores content at path on the server, overwriting any existing
// file. Missing parent directories are created unless the parent is the root
// itself.
func (s *Server) PutFile(path string, content []byte) error {
	memfs, err := s.filesystem("upload file")
	if err != nil {
		return err
	}

	return memfs.WriteFile(path, content)
}

// PutFileString stores text content at path, encoded with enc. A nil
// encoding means UTF-8.
func (s *Server) PutFileString(path, content string, enc encoding.Encoding) error {
	if enc == nil {
		enc = unicode.UTF8
	}

	raw, err := enc.NewEncoder().Bytes([]byte(content))
	if err != nil {
		return fmt.Errorf("failed to encode content for %s: %w", path, err)
	}

	return s.PutFile(path, raw)
}

// GetFileContent returns the raw content of the file at path. Reading a path
// that was never written fails with os.ErrNotExist.
func (s *Server) GetFileContent(path string) ([]byte, error) {
	memfs, err := s.filesystem("download file")
	if err != nil {
		return nil, err
	}

	return memfs.ReadFile(path)
}

// GetFileContentString returns the content of the file at path decoded with
// enc. A nil encoding means UTF-8.
func (s *Server) GetFileContentString(path string, enc encoding.Encoding) (string, error) {
	raw, err := s.GetFileContent(path)
	if err != nil {
		return "", err
	}

	if enc == nil {
		enc = unicode.UTF8
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode content of %s: %w", path, err)
	}

	return string(decoded), nil
}

// CreateDirectory creates a directory on the server, including any missing
// parents.
func (s *Server) CreateDirectory(path string) error {
	memfs, err := s.filesystem("create directory")
	if err != nil {
		return err
	}

	return memfs.MkdirAll(path)
}

// CreateDirectories creates multiple directories on the server.
func (s *Server) CreateDirectories(paths ...string) error {
	for _, path := range paths {
		if err := s.CreateDirectory(path); err != nil {
			return err
		}
	}

	return nil
}

// ExistsFile reports whether a regular file exists at path. Directories do
// not count.
func (s *Server) ExistsFile(path string) (bool, error) {
	memfs, err := s.filesystem("check existence of file")
	if err != nil {
		return false, err
	}

	info, err := memfs.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return !info.IsDir(), nil
}

// DeleteAllFilesAndDirectories wipes the server's filesystem, keeping only
// the root.
func (s *Server) DeleteAllFilesAndDirectories() error {
	memfs, err := s.filesystem("delete files and directories")
	if err != nil {
		return err
	}

	entries, err := memfs.ReadDir("/")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := memfs.RemoveAll(entry.FullPath()); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) filesystem(action string) (*fs.MemoryFS, error) {
	if s.memfs == nil {
		return nil, fmt.Errorf("failed to %s because %w", action, ErrNotRunning)
	}

	return s.memfs, nil
}
