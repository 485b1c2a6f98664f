// Package validate holds the pure, synchronous, side-effect-free checks that
// every executor must run on caller-supplied values before it touches a
// shell command string. Every exported function fails with a
// *scouterr.ValidationError; nothing here ever performs I/O.
package validate

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/jmagar/scoutmcp/internal/scouterr"
)

// allowedCommands is the fixed set of first-token commands run_command may
// invoke.
var allowedCommands = map[string]bool{
	"grep": true, "rg": true, "find": true, "ls": true, "tree": true,
	"cat": true, "head": true, "tail": true, "wc": true, "sort": true,
	"uniq": true, "diff": true, "stat": true, "file": true, "du": true,
	"df": true,
}

// HostName accepts only [A-Za-z0-9._-], length 1..64.
func HostName(s string) error {
	if len(s) == 0 || len(s) > 64 {
		return scouterr.NewValidationError("host", "length must be 1..64")
	}
	for _, r := range s {
		if !isHostNameRune(r) {
			return scouterr.NewValidationError("host", "contains character outside [A-Za-z0-9._-]: "+string(r))
		}
	}
	return nil
}

func isHostNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}

// Path rejects empty strings, embedded NUL/CR/LF, and any occurrence of
// "..", "~", "$", a backtick, or a parenthesis. It collapses runs of
// consecutive slashes but never canonicalizes against a filesystem: the
// remote OS is the final authority; this is defense-in-depth only.
func Path(s string) (string, error) {
	if s == "" {
		return "", scouterr.NewValidationError("path", "must not be empty")
	}
	for _, r := range s {
		switch r {
		case 0, '\r', '\n':
			return "", scouterr.NewValidationError("path", "contains a control character")
		}
	}
	if strings.Contains(s, "..") {
		return "", scouterr.NewValidationError("path", "contains '..'")
	}
	if strings.Contains(s, "~") {
		return "", scouterr.NewValidationError("path", "contains '~'")
	}
	if strings.Contains(s, "$") {
		return "", scouterr.NewValidationError("path", "contains '$'")
	}
	if strings.Contains(s, "`") {
		return "", scouterr.NewValidationError("path", "contains a backtick")
	}
	if strings.ContainsAny(s, "()") {
		return "", scouterr.NewValidationError("path", "contains a parenthesis")
	}
	return collapseSlashes(s), nil
}

func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for _, r := range s {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainerName restricts to [A-Za-z0-9_.-].
func ContainerName(s string) error {
	return restrictedCharset("container", s, 1, 255, func(r rune) bool {
		return isAlnum(r) || r == '_' || r == '.' || r == '-'
	})
}

// ProjectName restricts to [A-Za-z0-9_-].
func ProjectName(s string) error {
	return restrictedCharset("project", s, 1, 255, func(r rune) bool {
		return isAlnum(r) || r == '_' || r == '-'
	})
}

// ZpoolName uses the container-name charset [A-Za-z0-9_.-]. SnapshotName
// uses the same charset plus '@' and '/', so that dataset@snapshot paths
// such as "tank/data@daily" are accepted.
func ZpoolName(s string) error {
	return restrictedCharset("zpool", s, 1, 255, func(r rune) bool {
		return isAlnum(r) || r == '_' || r == '.' || r == '-'
	})
}

func SnapshotName(s string) error {
	return restrictedCharset("snapshot", s, 1, 255, func(r rune) bool {
		return isAlnum(r) || r == '_' || r == '.' || r == '-' || r == '@' || r == '/'
	})
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func restrictedCharset(field, s string, min, max int, allowed func(rune) bool) error {
	if len(s) < min || len(s) > max {
		return scouterr.NewValidationError(field, "length must be "+strconv.Itoa(min)+".."+strconv.Itoa(max))
	}
	for _, r := range s {
		if !allowed(r) {
			return scouterr.NewValidationError(field, "contains disallowed character: "+string(r))
		}
	}
	return nil
}

// Depth accepts integers in [1, 10] (tree max-depth).
func Depth(n int) error {
	if n < 1 || n > 10 {
		return scouterr.NewValidationError("depth", "must be in [1, 10]")
	}
	return nil
}

// Lines accepts integers in [1, 10000] (tail/journalctl line counts).
func Lines(n int) error {
	if n < 1 || n > 10000 {
		return scouterr.NewValidationError("lines", "must be in [1, 10000]")
	}
	return nil
}

// Command parses s as POSIX-style tokens. The first token must be in the
// allowlist and must itself contain no shell metacharacters. Every
// remaining token is rejected outright if it contains a shell metacharacter:
// the allowlist and per-argument quoting are both enforced, not either/or.
func Command(s string) (cmd string, args []string, err error) {
	tokens, tokErr := tokenize(s)
	if tokErr != nil {
		return "", nil, tokErr
	}
	if len(tokens) == 0 {
		return "", nil, scouterr.NewValidationError("command", "must not be empty")
	}
	cmd = tokens[0]
	if containsMeta(cmd) {
		return "", nil, scouterr.NewValidationError("command", "command name contains a shell metacharacter")
	}
	if !allowedCommands[cmd] {
		return "", nil, scouterr.NewValidationError("command", "'"+cmd+"' is not in the allowlist")
	}
	for _, a := range tokens[1:] {
		if containsMeta(a) {
			return "", nil, scouterr.NewValidationError("command", "argument contains a disallowed shell metacharacter: "+a)
		}
	}
	return cmd, tokens[1:], nil
}

// metaChars are rejected in any argument token regardless of quoting,
// because run_command still hands the final string to a shell pipeline;
// the allowlist alone is not trusted to stop injection through these
// characters.
const metaChars = ";|&`$(){}<>\n\r"

func containsMeta(s string) bool {
	return strings.ContainsAny(s, metaChars)
}

// tokenize implements a small POSIX-style word splitter: whitespace
// separates tokens, single and double quotes group a token's contents.
// Unterminated quotes are a validation error.
func tokenize(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inToken := false
	var quote rune

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
			inToken = true
			continue
		}
		switch {
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, scouterr.NewValidationError("command", "unterminated quote")
	}
	flush()
	return tokens, nil
}

// ShellQuote produces a single-quoted shell fragment safe against all shell
// interpretation, escaping embedded single quotes per POSIX
// ('\'' trick: close quote, escaped literal quote, reopen quote).
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
