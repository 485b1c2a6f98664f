// Package scouterr defines the typed error kinds shared by every layer of
// scoutmcp: the Validator, the Pool, the Executors, the Dispatcher and the
// Pipeline. Errors are plain wrapped sentinels so callers can test for a
// kind with errors.Is / errors.As instead of string matching.
package scouterr

import "errors"

// Sentinel kinds. Each is wrapped with context via fmt.Errorf("%w: ...")
// at the call site; errors.Is(err, scouterr.ErrUnknownHost) keeps working
// through any number of wraps.
var (
	// ErrValidation indicates a caller-supplied value failed a Validator check.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownHost indicates the target names a host absent from the inventory.
	ErrUnknownHost = errors.New("unknown host")

	// ErrAuth indicates a missing or incorrect API key.
	ErrAuth = errors.New("authentication failed")

	// ErrRateLimited indicates the caller's token bucket was empty.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrConnection indicates an SSH dial failed (network, handshake, host key).
	ErrConnection = errors.New("connection failed")

	// ErrRemote indicates a remote command expected to succeed returned
	// a non-zero exit code.
	ErrRemote = errors.New("remote command failed")

	// ErrPathNotFound indicates stat_path returned the missing sentinel.
	ErrPathNotFound = errors.New("path not found")

	// ErrTransfer indicates a streaming transfer between two hosts failed.
	ErrTransfer = errors.New("transfer failed")

	// ErrCancelled indicates propagation of an upstream cancellation; never
	// logged as an error (see logging call sites, which check errors.Is first).
	ErrCancelled = errors.New("operation cancelled")
)

// ValidationError carries the human-readable reason a Validator check failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return "validation failed for " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for the given field/reason.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UnknownHostError names every host known to the inventory so the caller
// can self-correct a typo.
type UnknownHostError struct {
	Requested string
	Known     []string
}

func (e *UnknownHostError) Error() string {
	return "unknown host " + quote(e.Requested) + "; available hosts: " + joinSorted(e.Known)
}

func (e *UnknownHostError) Unwrap() error { return ErrUnknownHost }

// RateLimitError carries the number of seconds the caller should wait
// before retrying.
type RateLimitError struct {
	RetryAfterSeconds float64
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded, retry after " + formatSeconds(e.RetryAfterSeconds) + "s"
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RemoteError carries the stderr and exit code of a remote command that was
// expected to succeed.
type RemoteError struct {
	Host     string
	Op       string
	Stderr   string
	ExitCode int
}

func (e *RemoteError) Error() string {
	return e.Op + " on " + e.Host + " exited " + itoa(e.ExitCode) + ": " + e.Stderr
}

func (e *RemoteError) Unwrap() error { return ErrRemote }

// PathNotFoundError names the host and path that could not be stat'd.
type PathNotFoundError struct {
	Host string
	Path string
}

func (e *PathNotFoundError) Error() string {
	return e.Path + " not found on " + e.Host
}

func (e *PathNotFoundError) Unwrap() error { return ErrPathNotFound }

// TransferError carries the number of bytes actually written before a
// transfer failed.
type TransferError struct {
	BytesWritten int64
	Reason       string
}

func (e *TransferError) Error() string {
	return "transfer failed after " + itoa64(e.BytesWritten) + " bytes: " + e.Reason
}

func (e *TransferError) Unwrap() error { return ErrTransfer }
