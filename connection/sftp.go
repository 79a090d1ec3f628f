package connection

import (
	"context"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/JSchillinger/fake-sftp-server-lambda/fs"
	"github.com/JSchillinger/fake-sftp-server-lambda/types"
)

// SFTPConnection describes how to reach an SFTP endpoint.
type SFTPConnection struct {
	Host string               `yaml:"host" json:"host"`
	Port int                  `yaml:"port,omitempty" json:"port,omitempty"`
	Auth types.Authentication `yaml:",inline" json:",inline"`
}

func (c SFTPConnection) GetProperties() map[string]string {
	return map[string]string{
		"host":     c.Host,
		"port":     strconv.Itoa(c.GetPort()),
		"username": c.Auth.GetUsername(),
	}
}

// GetPort returns the configured port, defaulting to the standard SSH port.
func (c SFTPConnection) GetPort() int {
	return lo.Ternary(c.Port > 0, c.Port, 22)
}

// Filesystem opens an SFTP session against the connection's endpoint.
func (c *SFTPConnection) Filesystem(ctx context.Context) (fs.FilesystemRW, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("sftp connection requires a host")
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.GetPort())
	return fs.NewSFTPFS(addr, c.Auth.GetUsername(), c.Auth.GetPassword())
}
