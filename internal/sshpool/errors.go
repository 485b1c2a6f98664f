package sshpool

import "errors"

var (
	// ErrDialFailed wraps any network, handshake, or auth failure during dial.
	ErrDialFailed = errors.New("ssh dial failed")

	// ErrHostKeyMismatch indicates the remote host key did not match the
	// configured trust anchor.
	ErrHostKeyMismatch = errors.New("ssh host key verification failed")

	// ErrPoolClosed is returned by Acquire once Close has been called.
	ErrPoolClosed = errors.New("connection pool is closed")
)
