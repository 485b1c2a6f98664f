package scout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmagar/scoutmcp/internal/executor"
	"github.com/jmagar/scoutmcp/internal/inventory"
	"github.com/jmagar/scoutmcp/internal/probe"
	"github.com/jmagar/scoutmcp/internal/scouterr"
	"github.com/jmagar/scoutmcp/internal/sshpool"
	"github.com/jmagar/scoutmcp/internal/validate"
)

// treeDefaultDepth is the fixed depth the targeted branch uses for tree_dir
// when the caller asks for a tree (tree=true), since Params doesn't expose
// a depth knob of its own.
const treeDefaultDepth = 3

// Params is the Scout operation's parameter set: target is required, the
// rest are optional.
type Params struct {
	Target   string
	Query    string
	HasQuery bool
	Tree     bool
	MaxBytes int64
}

// SessionPool is the subset of *sshpool.Pool the Dispatcher needs: borrow
// a session, or discard a stale one as part of the connection-retry
// protocol. Accepting this narrow interface (rather than the concrete
// *sshpool.Pool) lets tests substitute a fake pool with no real network.
type SessionPool interface {
	Acquire(ctx context.Context, host inventory.HostRecord) (sshpool.Session, error)
	Discard(host string)
}

// Dispatcher wires the Inventory, Pool, and Executors together to
// implement the "scout" operation, for both the tool-style and
// resource-style entry points.
type Dispatcher struct {
	Inventory      inventory.Adapter
	Pool           SessionPool
	MaxFileBytes   int64
	MaxOutputBytes int64
	CommandTimeout int
	ProbeTimeout   time.Duration
}

// New builds a Dispatcher. probeTimeout of 0 defaults to the standard
// 2-second per-host reachability timeout.
func New(inv inventory.Adapter, pool SessionPool, maxFileBytes, maxOutputBytes int64, commandTimeout int, probeTimeout time.Duration) *Dispatcher {
	if probeTimeout == 0 {
		probeTimeout = probe.DefaultTimeout
	}
	return &Dispatcher{
		Inventory:      inv,
		Pool:           pool,
		MaxFileBytes:   maxFileBytes,
		MaxOutputBytes: maxOutputBytes,
		CommandTimeout: commandTimeout,
		ProbeTimeout:   probeTimeout,
	}
}

// Scout is the tool-style entry point: a thrown typed error is converted
// into an error string (preserving kind and reason), never re-thrown. Only
// a bad target string or a transport-level failure independent of the
// target (e.g. context cancellation) is returned as a Go error.
func (d *Dispatcher) Scout(ctx context.Context, p Params) (string, error) {
	target, err := ParseTarget(p.Target)
	if err != nil {
		return "", err
	}

	if target.ListHosts {
		return d.listHosts(ctx)
	}

	text, err := d.resolve(ctx, target, p)
	if err != nil {
		if errors.Is(err, scouterr.ErrCancelled) {
			return "", err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %v", scouterr.ErrCancelled, ctxErr)
		}
		return errorText(target, err), nil
	}
	return text, nil
}

// ReadResource is the resource-addressed entry point: file://, docker://,
// compose://, zfs://, syslog://, hosts://. Typed errors are re-thrown
// rather than formatted into text.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string, p Params) (string, error) {
	scheme, host, subPath, err := parseResourceURI(uri)
	if err != nil {
		return "", err
	}

	if scheme == "hosts" {
		return d.listHosts(ctx)
	}

	if err := validate.HostName(host); err != nil {
		return "", err
	}
	target := Target{Host: host, Path: subPath}

	switch scheme {
	case "file":
		if !strings.HasPrefix(target.Path, "/") {
			target.Path = "/" + target.Path
		}
		return d.resolve(ctx, target, p)
	case "docker", "compose", "zfs", "syslog":
		return d.resolveServiceResource(ctx, scheme, target, p)
	default:
		return "", scouterr.NewValidationError("uri", "unsupported scheme "+strings.TrimSpace(scheme))
	}
}

// listHosts probes every known host concurrently and formats a descriptor
// line per host.
func (d *Dispatcher) listHosts(ctx context.Context) (string, error) {
	hosts := d.Inventory.Hosts()

	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]probe.Target, 0, len(hosts))
	for _, name := range names {
		h := hosts[name]
		targets = append(targets, probe.Target{Host: name, Address: fmt.Sprintf("%s:%d", h.Address, h.Port)})
	}
	results := probe.Probe(ctx, targets, d.ProbeTimeout)

	reachable := make(map[string]bool, len(results))
	for _, r := range results {
		reachable[r.Host] = r.Reachable
	}

	var b strings.Builder
	for _, name := range names {
		h := hosts[name]
		state := "offline"
		if reachable[name] {
			state = "online"
		}
		fmt.Fprintf(&b, "%s\t%s:%d\t%s\t%s\t%s\n", name, h.Address, h.Port, h.User, state, hostDescriptor(h))
	}
	return b.String(), nil
}

// hostDescriptor renders a host's Tags/Labels into the descriptor block's
// trailing field, e.g. "prod,frontend region=us-east". Empty when the host
// has neither.
func hostDescriptor(h inventory.HostRecord) string {
	var parts []string
	if len(h.Tags) > 0 {
		parts = append(parts, strings.Join(h.Tags, ","))
	}
	if len(h.Labels) > 0 {
		keys := make([]string, 0, len(h.Labels))
		for k := range h.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		labels := make([]string, 0, len(keys))
		for _, k := range keys {
			labels = append(labels, fmt.Sprintf("%s=%s", k, h.Labels[k]))
		}
		parts = append(parts, strings.Join(labels, ","))
	}
	return strings.Join(parts, " ")
}

// resolve implements the targeted (non-list-hosts) branch, shared by both
// entry point variants.
func (d *Dispatcher) resolve(ctx context.Context, target Target, p Params) (string, error) {
	cleanPath, err := validate.Path(target.Path)
	if err != nil {
		return "", err
	}
	target.Path = cleanPath

	host, ok := d.Inventory.Host(target.Host)
	if !ok {
		return "", &scouterr.UnknownHostError{Requested: target.Host, Known: knownHostNames(d.Inventory)}
	}

	sess, err := d.acquireWithRetry(ctx, host)
	if err != nil {
		return "", err
	}

	if p.HasQuery {
		return d.runQuery(ctx, sess, target, p)
	}

	kind, err := executor.StatPath(ctx, sess, target.Path)
	if err != nil {
		return "", err
	}

	switch kind {
	case executor.StatMissing:
		return "", &scouterr.PathNotFoundError{Host: target.Host, Path: target.Path}
	case executor.StatDirectory:
		if p.Tree {
			text, err := executor.TreeDir(ctx, sess, target.Path, treeDefaultDepth)
			return text, withHost(err, target.Host)
		}
		text, truncated, err := executor.LsDir(ctx, sess, target.Path, d.MaxOutputBytes)
		if err != nil {
			return "", withHost(err, target.Host)
		}
		return withTruncationNotice(text, truncated), nil
	default: // StatFile
		maxBytes := p.MaxBytes
		if maxBytes <= 0 {
			maxBytes = d.MaxFileBytes
		}
		text, truncated, err := executor.CatFile(ctx, sess, target.Path, maxBytes)
		if err != nil {
			return "", withHost(err, target.Host)
		}
		return withTruncationNotice(text, truncated), nil
	}
}

// withHost names the host on a *scouterr.RemoteError before it propagates,
// so the resource-style entry point (which re-throws rather than formatting
// errors to text) never loses host context. Other error kinds pass through
// unchanged.
func withHost(err error, host string) error {
	var re *scouterr.RemoteError
	if errors.As(err, &re) && re.Host == "" {
		re.Host = host
	}
	return err
}

func (d *Dispatcher) runQuery(ctx context.Context, sess sshpool.Session, target Target, p Params) (string, error) {
	timeout := d.CommandTimeout
	if timeout <= 0 {
		timeout = 30
	}
	res, err := executor.RunCommand(ctx, sess, target.Path, p.Query, timeout, d.MaxOutputBytes)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(res.Stdout)
	if res.Stderr != "" {
		fmt.Fprintf(&b, "[stderr]\n%s", res.Stderr)
	}
	if res.ExitCode != 0 {
		fmt.Fprintf(&b, "[exit code: %d]\n", res.ExitCode)
	}
	return b.String(), nil
}

// acquireWithRetry implements the connection-retry protocol: on a failed
// borrow, discard the pool entry and retry exactly once.
func (d *Dispatcher) acquireWithRetry(ctx context.Context, host inventory.HostRecord) (sshpool.Session, error) {
	sess, err := d.Pool.Acquire(ctx, host)
	if err == nil {
		return sess, nil
	}
	d.Pool.Discard(host.Name)
	return d.Pool.Acquire(ctx, host)
}

func withTruncationNotice(text string, truncated bool) string {
	if !truncated {
		return text
	}
	return text + "\n[output truncated]\n"
}

func knownHostNames(inv inventory.Adapter) []string {
	hosts := inv.Hosts()
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	return names
}

// errorText renders a typed error into the tool-style entry point's error
// string, always naming the host. The operation appears only where the
// error's own text names it (RemoteError does; PathNotFoundError and
// UnknownHostError do not).
func errorText(target Target, err error) string {
	return fmt.Sprintf("error on %s: %s", target.Host, err.Error())
}
