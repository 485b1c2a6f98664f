// Package executor implements stateless operations that, given a borrowed
// session, run a specific shell recipe and return a normalized value. No
// executor retries (retry belongs to the Dispatcher); no executor
// constructs a command string by plain interpolation -- every interpolated
// value passes through internal/validate first.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmagar/scoutmcp/internal/scouterr"
	"github.com/jmagar/scoutmcp/internal/sshpool"
	"github.com/jmagar/scoutmcp/internal/validate"
)

// StatKind is the result of stat_path.
type StatKind int

const (
	StatMissing StatKind = iota
	StatFile
	StatDirectory
)

// StatPath runs `stat -c "%F" <path> 2>/dev/null` and classifies the
// result. Anything the remote reports other than "directory" (symlink,
// device, socket, ...) is treated as a file.
func StatPath(ctx context.Context, sess sshpool.Session, path string) (StatKind, error) {
	quoted, err := quotedPath(path)
	if err != nil {
		return StatMissing, err
	}

	cmd := fmt.Sprintf(`stat -c "%%F" %s 2>/dev/null`, quoted)
	stdout, _, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return StatMissing, fmt.Errorf("%w: stat %s: %v", scouterr.ErrConnection, path, err)
	}
	if exitCode != 0 {
		return StatMissing, nil
	}
	if strings.TrimSpace(stdout) == "directory" {
		return StatDirectory, nil
	}
	return StatFile, nil
}

// CatFile runs `head -c <max_bytes> <path>` and reports truncation when the
// returned text is strictly longer than max_bytes, never on equality.
func CatFile(ctx context.Context, sess sshpool.Session, path string, maxBytes int64) (text string, truncated bool, err error) {
	quoted, err := quotedPath(path)
	if err != nil {
		return "", false, err
	}

	cmd := fmt.Sprintf("head -c %d %s", maxBytes, quoted)
	stdout, stderr, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return "", false, fmt.Errorf("%w: cat_file %s: %v", scouterr.ErrConnection, path, err)
	}
	if exitCode != 0 {
		return "", false, &scouterr.RemoteError{Host: "", Op: "cat_file", Stderr: stderr, ExitCode: exitCode}
	}
	truncated = int64(len(stdout)) > maxBytes
	return stdout, truncated, nil
}

// LsDir runs `ls -la <path> | head -c <max_output_bytes>`.
func LsDir(ctx context.Context, sess sshpool.Session, path string, maxOutputBytes int64) (text string, truncated bool, err error) {
	quoted, err := quotedPath(path)
	if err != nil {
		return "", false, err
	}

	cmd := fmt.Sprintf("ls -la %s | head -c %d", quoted, maxOutputBytes)
	stdout, stderr, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return "", false, fmt.Errorf("%w: ls_dir %s: %v", scouterr.ErrConnection, path, err)
	}
	if exitCode != 0 {
		return "", false, &scouterr.RemoteError{Op: "ls_dir", Stderr: stderr, ExitCode: exitCode}
	}
	return stdout, int64(len(stdout)) > maxOutputBytes, nil
}

// TreeDir runs `tree -L <depth> --noreport <path>`, falling back to a find
// recipe when tree exits non-zero (e.g. not installed). A failing tree or
// find is not an error; an invalid depth or path, or a transport failure,
// is returned as one.
func TreeDir(ctx context.Context, sess sshpool.Session, path string, depth int) (string, error) {
	if err := validate.Depth(depth); err != nil {
		return "", err
	}
	quoted, err := quotedPath(path)
	if err != nil {
		return "", err
	}

	cmd := fmt.Sprintf("tree -L %d --noreport %s", depth, quoted)
	stdout, _, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("%w: tree_dir %s: %v", scouterr.ErrConnection, path, err)
	}
	if exitCode == 0 {
		return stdout, nil
	}

	fallback := fmt.Sprintf(`find %s -maxdepth %d \( -type f -o -type d \) | head -100`, quoted, depth)
	stdout, _, _, err = sess.Run(ctx, fallback)
	if err != nil {
		return "", fmt.Errorf("%w: tree_dir fallback %s: %v", scouterr.ErrConnection, path, err)
	}
	return stdout, nil
}

func quotedPath(path string) (string, error) {
	clean, err := validate.Path(path)
	if err != nil {
		return "", err
	}
	return validate.ShellQuote(clean), nil
}
