// Package auth implements an optional constant-time API-key check.
// Disabled entirely when no keys are configured.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/jmagar/scoutmcp/internal/scouterr"
)

// Authenticator checks a caller-supplied API key against a configured set.
type Authenticator struct {
	keys []string
}

// New builds an Authenticator. An empty keys set means auth is disabled:
// Check always succeeds.
func New(keys []string) *Authenticator {
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &Authenticator{keys: cp}
}

// Enabled reports whether any API key is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0
}

// Check compares apiKey against the configured set with constant-time
// comparison on each candidate, so a mismatch reveals nothing about how
// many leading bytes matched. Returns *scouterr.ValidationError-free
// scouterr.ErrAuth on failure or when auth is enabled but apiKey is empty.
func (a *Authenticator) Check(apiKey string) error {
	if !a.Enabled() {
		return nil
	}
	if apiKey == "" {
		return scouterr.ErrAuth
	}
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(k)) == 1 {
			return nil
		}
	}
	return scouterr.ErrAuth
}

// CorrelationHash returns a short, non-reversible prefix of apiKey safe to
// log for correlation. The full key is never logged.
func CorrelationHash(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:8]
}
