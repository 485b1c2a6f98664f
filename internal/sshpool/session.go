package sshpool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Session is a live remote session an Executor borrows for the duration of a
// single call. Implementations must be safe to use after the context passed
// to Run is cancelled (cancellation abandons the in-flight command; it never
// closes the underlying transport).
type Session interface {
	// Run executes cmd via the remote shell and returns its decoded stdout,
	// stderr, and exit code. A non-zero exit is reported through exitCode,
	// not through err; err is reserved for transport-level failures.
	Run(ctx context.Context, cmd string) (stdout, stderr string, exitCode int, err error)

	// NewSFTPClient opens an SFTP subsystem channel on this session's
	// transport. The caller owns the returned client and must close it;
	// closing it does not close the session.
	NewSFTPClient() (SFTPClient, error)

	// Open reports whether the underlying transport is still usable.
	Open() bool

	// Close tears down the underlying transport. Only the Pool calls this.
	Close() error
}

// sshSession wraps an *ssh.Client. One sshSession is created per pooled host
// entry; Run opens a fresh ssh.Session per command, matching how the OpenSSH
// multiplexer expects one channel per exec.
type sshSession struct {
	client *ssh.Client
	closed atomic.Bool
}

func newSSHSession(client *ssh.Client) *sshSession {
	return &sshSession{client: client}
}

func (s *sshSession) Run(ctx context.Context, cmd string) (string, string, int, error) {
	if s.closed.Load() {
		return "", "", 0, fmt.Errorf("session closed")
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return "", "", 0, fmt.Errorf("opening ssh channel: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		// Abandon the command: close only this channel, never the
		// session's transport, so subsequent borrows can still reuse it.
		sess.Close()
		return "", "", 0, ctx.Err()
	case runErr := <-done:
		exitCode := 0
		if runErr != nil {
			var exitErr *ssh.ExitError
			if ok := asExitError(runErr, &exitErr); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return "", "", 0, fmt.Errorf("running command: %w", runErr)
			}
		}
		return decodeLossy(stdout.Bytes()), decodeLossy(stderr.Bytes()), exitCode, nil
	}
}

func asExitError(err error, target **ssh.ExitError) bool {
	exitErr, ok := err.(*ssh.ExitError)
	if !ok {
		return false
	}
	*target = exitErr
	return true
}

func (s *sshSession) NewSFTPClient() (SFTPClient, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("session closed")
	}
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, err
	}
	return &sftpClientWrapper{client: client}, nil
}

func (s *sshSession) Open() bool {
	if s.closed.Load() {
		return false
	}
	// A lightweight liveness probe: SendRequest on the transport's global
	// channel returns an error once the underlying connection is dead.
	_, _, err := s.client.Conn.SendRequest("keepalive@scoutmcp", true, nil)
	return err == nil
}

func (s *sshSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.client.Close()
}

// decodeLossy decodes bytes as UTF-8, replacing invalid sequences rather
// than dropping them, so no raw byte sequence ever escapes the core.
func decodeLossy(b []byte) string {
	return lossyUTF8(b)
}

// entry tracks a pooled session alongside the bookkeeping the Pool needs to
// enforce idle/lifetime eviction without touching the session itself.
type entry struct {
	session   Session
	lastUsed  time.Time
	createdAt time.Time
}

var _ io.Closer = (*sshSession)(nil)
