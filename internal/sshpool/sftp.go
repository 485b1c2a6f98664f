package sshpool

import (
	"io"

	"github.com/pkg/sftp"
)

// SFTPClient is the minimal surface Transfer needs, abstracted from
// *sftp.Client so tests can substitute a fake.
type SFTPClient interface {
	Open(path string) (SFTPFile, error)
	Create(path string) (SFTPFile, error)
	Close() error
}

// SFTPFile is a remote file handle opened through an SFTPClient.
type SFTPFile interface {
	io.Reader
	io.Writer
	Close() error
}

type sftpClientWrapper struct {
	client *sftp.Client
}

func (w *sftpClientWrapper) Open(path string) (SFTPFile, error) {
	return w.client.Open(path)
}

func (w *sftpClientWrapper) Create(path string) (SFTPFile, error) {
	return w.client.Create(path)
}

func (w *sftpClientWrapper) Close() error {
	return w.client.Close()
}
