// Package sftpd implements a minimal in-process SFTP server. The SSH
// transport and the SFTP protocol are delegated to golang.org/x/crypto/ssh
// and github.com/pkg/sftp; this package only wires a listener, an
// authenticator and a filesystem backend together.
package sftpd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/flanksource/commons/logger"
	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

type Config struct {
	// Addr is the TCP listen address, e.g. ":23454". An empty port binds an
	// ephemeral one.
	Addr string

	// HostSigner presents the server's identity. When nil a fresh,
	// non-persisted key is generated.
	HostSigner ssh.Signer

	// PasswordCallback authenticates clients. When nil every
	// username/password pair is accepted.
	PasswordCallback func(user, password string) bool

	// Filesystem is served to every session.
	Filesystem afero.Fs
}

type Server struct {
	addr      string
	sshConfig *ssh.ServerConfig
	fsys      afero.Fs

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func New(config Config) (*Server, error) {
	if config.Filesystem == nil {
		return nil, fmt.Errorf("sftpd: config requires a filesystem")
	}

	signer := config.HostSigner
	if signer == nil {
		var err error
		if signer, err = GenerateHostKey(); err != nil {
			return nil, err
		}
	}

	auth := config.PasswordCallback
	sshConfig := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if auth == nil || auth(c.User(), string(password)) {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	sshConfig.AddHostKey(signer)

	return &Server{
		addr:      config.Addr,
		sshConfig: sshConfig,
		fsys:      config.Filesystem,
		conns:     map[net.Conn]struct{}{},
	}, nil
}

// Listen binds the configured address. A port already in use surfaces here,
// before any session is served.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("sftpd: failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logger.V(3).Infof("sftpd listening on %s", listener.Addr())
	return nil
}

// Serve accepts connections until Close. Each connection is handled on its
// own goroutine; the caller's test body runs concurrently with the sessions.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("sftpd: Serve called before Listen")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

// Start is Listen followed by Serve on a background goroutine.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	go func() {
		if err := s.Serve(); err != nil {
			logger.Errorf("sftpd serve: %v", err)
		}
	}()

	return nil
}

// Port returns the bound TCP port. Only valid after Listen.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}

	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}

	return 0
}

// Close stops the listener, tears down active sessions and blocks until all
// handlers have returned, releasing the port for the next start.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		logger.V(3).Infof("sftpd handshake with %s failed: %v", conn.RemoteAddr(), err)
		return
	}
	defer sconn.Close()

	logger.V(3).Infof("sftpd session opened for user %q from %s", sconn.User(), sconn.RemoteAddr())
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			logger.V(3).Infof("sftpd channel accept failed: %v", err)
			continue
		}

		go s.handleSession(channel, requests)
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		// The payload is a length-prefixed subsystem name.
		ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
		_ = req.Reply(ok, nil)
		if !ok {
			continue
		}

		server := sftp.NewRequestServer(channel, Handlers(s.fsys))
		if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
			logger.V(3).Infof("sftpd subsystem closed: %v", err)
		}
		_ = server.Close()
		return
	}
}
