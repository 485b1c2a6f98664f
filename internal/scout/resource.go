package scout

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmagar/scoutmcp/internal/executor"
	"github.com/jmagar/scoutmcp/internal/scouterr"
	"github.com/jmagar/scoutmcp/internal/validate"
)

// parseResourceURI splits a resource-style URI of shape
// "<scheme>://<host>/<sub-path>" into its scheme, host, and sub-path.
// sub-path may be empty (e.g. "docker://web1" addresses docker ps with no
// container filter).
func parseResourceURI(uri string) (scheme, host, subPath string, err error) {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return "", "", "", scouterr.NewValidationError("uri", "missing scheme separator \"://\"")
	}
	scheme = uri[:idx]
	rest := uri[idx+3:]
	if rest == "" {
		if scheme == "hosts" {
			return scheme, "", "", nil
		}
		return "", "", "", scouterr.NewValidationError("uri", "missing host")
	}

	slash := strings.Index(rest, "/")
	if slash < 0 {
		return scheme, rest, "", nil
	}
	return scheme, rest[:slash], rest[slash+1:], nil
}

// resolveServiceResource handles the docker://, compose://, zfs://, and
// syslog:// resource schemes, each routing to the matching service-state
// executor. sub-path carries scheme-specific addressing:
//
//	docker://<host>/<container>        -> docker logs (empty -> docker ps)
//	compose://<host>/<project>         -> compose logs
//	zfs://<host>/<pool>                -> zfs list
//	zfs://<host>/<pool>/snapshots      -> zfs snapshot list
//	syslog://<host>                    -> system log tail
func (d *Dispatcher) resolveServiceResource(ctx context.Context, scheme string, target Target, p Params) (string, error) {
	if err := validate.HostName(target.Host); err != nil {
		return "", err
	}
	host, ok := d.Inventory.Host(target.Host)
	if !ok {
		return "", &scouterr.UnknownHostError{Requested: target.Host, Known: knownHostNames(d.Inventory)}
	}
	sess, err := d.acquireWithRetry(ctx, host)
	if err != nil {
		return "", err
	}

	lines := defaultTailLines

	switch scheme {
	case "docker":
		if target.Path == "" {
			containers, err := executor.DockerPS(ctx, sess)
			if err != nil {
				return "", err
			}
			return formatContainerStatuses(containers), nil
		}
		if err := validate.ContainerName(target.Path); err != nil {
			return "", err
		}
		text, truncated, err := executor.DockerLogs(ctx, sess, target.Path, lines, d.MaxOutputBytes)
		if err != nil {
			return "", err
		}
		return withTruncationNotice(text, truncated), nil

	case "compose":
		if target.Path == "" {
			return "", scouterr.NewValidationError("uri", "compose:// requires a project name")
		}
		if err := validate.ProjectName(target.Path); err != nil {
			return "", err
		}
		text, truncated, err := executor.ComposeLogs(ctx, sess, target.Path, lines, d.MaxOutputBytes)
		if err != nil {
			return "", err
		}
		return withTruncationNotice(text, truncated), nil

	case "zfs":
		pool, snapshots := strings.CutSuffix(target.Path, "/snapshots")
		if pool == "" {
			pools, err := executor.ZpoolList(ctx, sess)
			if err != nil {
				return "", err
			}
			return formatZpoolStatuses(pools), nil
		}
		if err := validate.ZpoolName(pool); err != nil {
			return "", err
		}
		if snapshots {
			snaps, err := executor.ZfsSnapshots(ctx, sess, pool)
			if err != nil {
				return "", err
			}
			return formatZfsSnapshots(snaps), nil
		}
		datasets, err := executor.ZfsList(ctx, sess, pool)
		if err != nil {
			return "", err
		}
		return formatZfsDatasets(datasets), nil

	case "syslog":
		text, truncated, err := executor.SystemLog(ctx, sess, lines, d.MaxOutputBytes)
		if err != nil {
			return "", err
		}
		return withTruncationNotice(text, truncated), nil

	default:
		return "", scouterr.NewValidationError("uri", "unsupported scheme "+scheme)
	}
}

const defaultTailLines = 100

func formatContainerStatuses(cs []executor.ContainerStatus) string {
	var b strings.Builder
	for _, c := range cs {
		b.WriteString(c.Name + "\t" + c.Status + "\t" + c.Image + "\n")
	}
	return b.String()
}

func formatZpoolStatuses(zs []executor.ZpoolStatus) string {
	var b strings.Builder
	for _, z := range zs {
		b.WriteString(z.Name + "\t" + itoa64(z.Size) + "\t" + itoa64(z.Alloc) + "\t" + itoa64(z.Free) + "\t" + z.Health + "\n")
	}
	return b.String()
}

func formatZfsDatasets(ds []executor.ZfsDataset) string {
	var b strings.Builder
	for _, d := range ds {
		b.WriteString(d.Name + "\t" + itoa64(d.Used) + "\t" + itoa64(d.Avail) + "\t" + d.Mount + "\n")
	}
	return b.String()
}

func formatZfsSnapshots(ss []executor.ZfsSnapshot) string {
	var b strings.Builder
	for _, s := range ss {
		b.WriteString(s.Name + "\t" + itoa64(s.Used) + "\n")
	}
	return b.String()
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
