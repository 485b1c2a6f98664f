// Package scout implements the operation dispatcher: it parses a target
// string, resolves it against the Inventory, borrows a session from the
// Pool, and routes to the Executors. Two families of entry points share
// one internal resolve function (Scout, the tool-style entry point that
// formats typed errors into strings, and the ReadResource family, which
// re-throws them instead) -- the error-propagation variant is a property
// of the entry point, not of the operation.
package scout

import (
	"strings"

	"github.com/jmagar/scoutmcp/internal/scouterr"
	"github.com/jmagar/scoutmcp/internal/validate"
)

// Target is the parsed form of a caller's target string: either the
// list-hosts sentinel, or a validated (host, path) pair.
type Target struct {
	ListHosts bool
	Host      string
	Path      string
}

// ParseTarget parses a caller's target string: "hosts" (case-insensitive)
// selects the list-hosts branch; otherwise the string splits on the first
// ':', both sides must be non-empty, and each side is validated.
func ParseTarget(target string) (Target, error) {
	if strings.EqualFold(target, "hosts") {
		return Target{ListHosts: true}, nil
	}

	idx := strings.Index(target, ":")
	if idx < 0 {
		return Target{}, scouterr.NewValidationError("target", "must be \"hosts\" or \"<host>:<path>\"")
	}
	hostPart, pathPart := target[:idx], target[idx+1:]
	if hostPart == "" || pathPart == "" {
		return Target{}, scouterr.NewValidationError("target", "host and path must both be non-empty")
	}

	if err := validate.HostName(hostPart); err != nil {
		return Target{}, err
	}
	cleanPath, err := validate.Path(pathPart)
	if err != nil {
		return Target{}, err
	}

	return Target{Host: hostPart, Path: cleanPath}, nil
}
