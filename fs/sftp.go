package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sshFS implements FilesystemRW over a live SFTP session.
type sshFS struct {
	*sftp.Client
	conn *ssh.Client
	wd   string
}

type sshFileInfo struct {
	fullpath string
	fs.FileInfo
}

func (t *sshFileInfo) FullPath() string {
	return t.fullpath
}

// NewSFTPFS dials host and opens an SFTP session. Host key checking is
// disabled; the servers this talks to present a throwaway key per start.
func NewSFTPFS(host, user, password string) (*sshFS, error) {
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	conn, err := ssh.Dial("tcp", host, config)
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	wd, err := sftpClient.Getwd()
	if err != nil {
		_ = sftpClient.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	return &sshFS{
		wd:     wd,
		conn:   conn,
		Client: sftpClient,
	}, nil
}

func (t *sshFS) Close() error {
	err := t.Client.Close()
	if cerr := t.conn.Close(); err == nil {
		err = cerr
	}

	return err
}

func (t *sshFS) ReadDir(name string) ([]FileInfo, error) {
	if strings.Contains(name, "*") {
		return t.ReadDirGlob(name)
	}

	files, err := t.Client.ReadDir(name)
	if err != nil {
		return nil, err
	}

	output := make([]FileInfo, 0, len(files))
	for _, file := range files {
		base := name
		if !strings.HasPrefix(name, "/") {
			base = filepath.Join(t.wd, name)
		}

		output = append(output, &sshFileInfo{FileInfo: file, fullpath: filepath.Join(base, file.Name())})
	}

	return output, nil
}

func (t *sshFS) ReadDirGlob(name string) ([]FileInfo, error) {
	entries, err := t.Client.Glob(name)
	if err != nil {
		return nil, err
	}

	output := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := t.Stat(entry)
		if err != nil {
			return nil, err
		}

		output = append(output, &sshFileInfo{FileInfo: info, fullpath: entry})
	}

	return output, nil
}

func (s *sshFS) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.Client.Open(path)
}

func (s *sshFS) Write(ctx context.Context, path string, data io.Reader) (os.FileInfo, error) {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	err := s.Client.MkdirAll(dir)
	if err != nil {
		return nil, fmt.Errorf("error creating directory: %w", err)
	}

	f, err := s.Client.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating file: %w", err)
	}

	_, err = io.Copy(f, data)
	if err != nil {
		return nil, fmt.Errorf("error writing to file: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, err
	}

	return s.Client.Stat(path)
}
