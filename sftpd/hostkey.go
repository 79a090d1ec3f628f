package sftpd

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// GenerateHostKey returns a throwaway ed25519 host key signer. A fresh key
// is generated for every server start and never persisted, so clients must
// not pin host keys across runs.
func GenerateHostKey() (ssh.Signer, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("error generating host key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(private)
	if err != nil {
		return nil, fmt.Errorf("error creating host key signer: %w", err)
	}

	return signer, nil
}
