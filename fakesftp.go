// Package fakesftp runs an in-process SFTP server backed by an in-memory
// filesystem while your tests are running, so code that talks to an SFTP
// server can be exercised without a real server or disk.
//
// The fixture wraps a test body:
//
//	err := fakesftp.Run(func(server *fakesftp.Server) error {
//		_ = server.PutFile("/directory/file.txt", []byte("content"))
//		// code under test downloads the file from localhost:server.Port()
//		return nil
//	})
//
// or attaches to a *testing.T directly:
//
//	server := fakesftp.New(t)
//	server.PutFile("/directory/file.txt", []byte("content"))
//
// By default the server accepts every username/password combination. Once
// AddUser has been called, only the registered users are accepted. The host
// key is generated fresh on every start; clients must not pin it.
package fakesftp

import (
	"fmt"
	"sync"
	"testing"

	"github.com/JSchillinger/fake-sftp-server-lambda/fs"
	"github.com/JSchillinger/fake-sftp-server-lambda/sftpd"
)

// Port is the fixed TCP port the server binds to. It is not configurable,
// which keeps client configuration trivial but means two fixtures cannot run
// concurrently in the same environment; the second one fails to bind.
const Port = 23454

// Server is the running fixture. Its filesystem exists exactly for the span
// of one Run (or one test when created via New); helpers called outside that
// window fail with ErrNotRunning.
type Server struct {
	mu    sync.RWMutex
	users map[string]string

	memfs *fs.MemoryFS
	sshd  *sftpd.Server
}

// Run starts the fixture, invokes fn and tears everything down again on
// every exit path. A startup failure (typically the port already being in
// use) is returned before fn runs.
func Run(fn func(server *Server) error) error {
	server := &Server{users: map[string]string{}}
	if err := server.start(); err != nil {
		return err
	}
	defer server.stop()

	return fn(server)
}

// New starts the fixture for the given test and registers teardown with its
// Cleanup. Startup failures fail the test immediately.
func New(tb testing.TB) *Server {
	tb.Helper()

	server := &Server{users: map[string]string{}}
	if err := server.start(); err != nil {
		tb.Fatalf("failed to start fake sftp server: %v", err)
	}
	tb.Cleanup(func() {
		if err := server.stop(); err != nil {
			tb.Logf("failed to stop fake sftp server: %v", err)
		}
	})

	return server
}

// Port returns the port of the SFTP server.
func (s *Server) Port() int {
	return Port
}

// AddUser registers a username/password pair. With no registered users every
// combination is accepted; with at least one, only the registered set is.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

func (s *Server) start() error {
	memfs := fs.NewMemoryFS()

	sshd, err := sftpd.New(sftpd.Config{
		Addr:             fmt.Sprintf(":%d", Port),
		PasswordCallback: s.authenticate,
		Filesystem:       memfs.Afero(),
	})
	if err != nil {
		return err
	}

	if err := sshd.Start(); err != nil {
		return err
	}

	s.memfs = memfs
	s.sshd = sshd
	return nil
}

func (s *Server) stop() error {
	var err error
	if s.sshd != nil {
		err = s.sshd.Close()
	}
	if s.memfs != nil {
		_ = s.memfs.Close()
	}

	s.sshd = nil
	s.memfs = nil
	return err
}

// authenticate runs on the server's connection goroutines, hence the lock.
func (s *Server) authenticate(user, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.users) == 0 {
		return true
	}

	registered, ok := s.users[user]
	return ok && registered == password
}
