package sshpool

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/jmagar/scoutmcp/internal/inventory"
	"github.com/jmagar/scoutmcp/internal/logging"
	"github.com/jmagar/scoutmcp/internal/scouterr"
)

// dialer builds SSH sessions for the Pool. It is the only place in the
// package that touches the network directly.
type dialer struct {
	connectTimeout time.Duration
	knownHostsPath string // "" is invalid at this layer; config.Validate enforces it upstream
}

func newDialer(connectTimeout time.Duration, knownHostsPath string) *dialer {
	return &dialer{connectTimeout: connectTimeout, knownHostsPath: knownHostsPath}
}

func (d *dialer) dial(ctx context.Context, host inventory.HostRecord) (Session, error) {
	logger := logging.FromContext(ctx)

	hostKeyCallback, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            host.User,
		Auth:            d.authMethods(host),
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", host.Address, host.Port)
	logger.Debug().Str("host", host.Name).Str("addr", addr).Msg("dialing ssh")

	client, err := dialContext(ctx, addr, sshConfig)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "auth") || strings.Contains(errMsg, "unable to authenticate") {
			return nil, fmt.Errorf("%w: %w: %v", ErrDialFailed, scouterr.ErrConnection, err)
		}
		return nil, fmt.Errorf("%w: %w: %v", ErrDialFailed, scouterr.ErrConnection, err)
	}

	logger.Debug().Str("host", host.Name).Msg("ssh connection established")
	return newSSHSession(client), nil
}

// dialContext runs a context-aware TCP dial followed by the SSH handshake.
// The TCP connect honours ctx and config.Timeout; the handshake is bounded
// by config.Timeout and by ctx's deadline, if any. The returned client is
// not tied to ctx: it stays open until closed, so the pool can reuse it.
func dialContext(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	d := &net.Dialer{Timeout: config.Timeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial: %w", err)
	}

	var deadline time.Time
	if config.Timeout > 0 {
		deadline = time.Now().Add(config.Timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake (addr %s): %w", addr, err)
	}
	conn.SetDeadline(time.Time{})

	client := ssh.NewClient(c, chans, reqs)
	return client, nil
}

// authMethods builds SSH auth methods in priority order: an explicit
// identity file if the host record names one, otherwise the SSH agent.
// Credential management stops at consuming already-configured identity
// material; no password path exists here.
func (d *dialer) authMethods(host inventory.HostRecord) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if host.IdentityFile != "" {
		if signer := loadPrivateKey(host.IdentityFile); signer != nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	} else if agentAuth := trySSHAgent(); agentAuth != nil {
		methods = append(methods, agentAuth)
	}

	return methods
}

func loadPrivateKey(path string) ssh.Signer {
	logger := logging.Global()

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Error().Err(err).Msg("resolving home directory for identity file")
			return nil
		}
		path = home + path[1:]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("file", path).Msg("reading identity file")
		return nil
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		logger.Error().Err(err).Str("file", path).Msg("parsing identity file")
		return nil
	}
	return signer
}

func trySSHAgent() ssh.AuthMethod {
	socketPath := os.Getenv("SSH_AUTH_SOCK")
	if socketPath == "" {
		return nil
	}
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil
	}
	client := agent.NewClient(conn)
	return ssh.PublicKeysCallback(client.Signers)
}

// hostKeyCallback builds the trust-anchor callback per the configured
// known_hosts_path. "none" fails open with a loud warning; anything else
// must load as a known_hosts file or dialing fails closed.
func (d *dialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.knownHostsPath == "none" {
		logging.Global().Warn().Msg("known_hosts verification disabled (known_hosts_path=none): " +
			"SSH connections are vulnerable to man-in-the-middle attacks")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	callback, err := knownhosts.New(d.knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts file %q: %w", d.knownHostsPath, err)
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := callback(hostname, remote, key); err != nil {
			return fmt.Errorf("%w: %v", ErrHostKeyMismatch, err)
		}
		return nil
	}, nil
}
