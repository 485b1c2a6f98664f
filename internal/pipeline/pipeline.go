// Package pipeline orders request handling: rate limiter, then
// authenticator, then dispatcher. It also carries the RequestContext type
// (the per-request identity and correlation fields) and the kind-to-status
// mapping applied at the transport boundary by callers of Handle.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jmagar/scoutmcp/internal/auth"
	"github.com/jmagar/scoutmcp/internal/logging"
	"github.com/jmagar/scoutmcp/internal/ratelimit"
	"github.com/jmagar/scoutmcp/internal/scouterr"
)

// RequestContext is the Pipeline's per-request context, given a concrete
// Go type. ClientID, when present, is preferred over
// ClientAddress as the rate limiter's bucket key.
type RequestContext struct {
	ClientID      string
	APIKey        string
	ClientAddress string
	RequestID     string
}

// clientKey returns the identity the rate limiter keys its bucket on:
// the authenticated principal if known, else the client address.
func (c RequestContext) clientKey() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return c.ClientAddress
}

// Handler invokes the operation dispatcher. Method carries the inbound
// method name so Pipeline can apply the health-probe bypass.
type Handler func(ctx context.Context, method string, params map[string]any, rc RequestContext) (string, error)

// Pipeline orders the rate limiter, authenticator, and dispatcher on
// every inbound request.
type Pipeline struct {
	limiter       *ratelimit.Limiter
	authenticator *auth.Authenticator
	healthMethod  string
	dispatch      Handler
}

// New builds a Pipeline. healthMethodName names the method that bypasses
// both the limiter and the authenticator.
func New(limiter *ratelimit.Limiter, authenticator *auth.Authenticator, healthMethodName string, dispatch Handler) *Pipeline {
	return &Pipeline{
		limiter:       limiter,
		authenticator: authenticator,
		healthMethod:  healthMethodName,
		dispatch:      dispatch,
	}
}

// Handle runs a single request through rate limiting, authentication, and
// dispatch, in that fixed order. A RequestID is stamped onto rc (via
// google/uuid) before the limiter runs if the caller didn't supply one, so
// every log line and error for this request — including ones rejected by
// the limiter — can be correlated.
func (p *Pipeline) Handle(ctx context.Context, method string, params map[string]any, rc RequestContext) (string, error) {
	if rc.RequestID == "" {
		rc.RequestID = uuid.NewString()
	}

	log := logging.Global().With().Str("request_id", rc.RequestID).Str("method", method).Logger()

	isHealth := method == p.healthMethod

	if !isHealth {
		if err := p.limiter.Allow(rc.clientKey()); err != nil {
			log.Warn().Err(err).Str("client", rc.clientKey()).Msg("rate limited")
			return "", err
		}
	}

	if !isHealth && p.authenticator.Enabled() {
		if err := p.authenticator.Check(rc.APIKey); err != nil {
			log.Warn().Str("key_hash", auth.CorrelationHash(rc.APIKey)).Msg("authentication failed")
			return "", err
		}
	}

	result, err := p.dispatch(ctx, method, params, rc)
	if err != nil && !errors.Is(err, scouterr.ErrCancelled) {
		log.Error().Err(err).Msg("request failed")
	}
	return result, err
}

// StatusCode maps an error's kind to a transport status code. It returns
// 0 for a nil error (meaning "success, no mapping
// needed"). Adapters (e.g. cmd/scoutmcpd) use this at the outer boundary;
// the core itself never produces transport status codes.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, scouterr.ErrRateLimited):
		return 429
	case errors.Is(err, scouterr.ErrAuth):
		return 401
	case errors.Is(err, scouterr.ErrValidation):
		return 400
	case errors.Is(err, scouterr.ErrUnknownHost):
		return 404
	case errors.Is(err, scouterr.ErrPathNotFound):
		return 404
	case errors.Is(err, scouterr.ErrRemote):
		return 500
	case errors.Is(err, scouterr.ErrConnection):
		return 502
	case errors.Is(err, scouterr.ErrTransfer):
		return 500
	default:
		return 500
	}
}

// RetryAfterSeconds extracts the retry_after_seconds attribute from a
// RateLimitError, or 0 if err doesn't carry one.
func RetryAfterSeconds(err error) float64 {
	var rl *scouterr.RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfterSeconds
	}
	return 0
}
