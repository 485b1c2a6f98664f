package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmagar/scoutmcp/internal/sshpool"
	"github.com/jmagar/scoutmcp/internal/validate"
)

// ContainerStatus is one row of `docker ps`.
type ContainerStatus struct {
	Name   string
	Status string
	Image  string
}

// DockerPS lists running containers. Docker not being installed is an
// optional-subsystem absence: it yields an empty slice, not an error.
func DockerPS(ctx context.Context, sess sshpool.Session) ([]ContainerStatus, error) {
	stdout, _, exitCode, err := sess.Run(ctx, `docker ps --format '{{.Names}}\t{{.Status}}\t{{.Image}}'`)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, nil
	}
	return parseContainerRows(stdout), nil
}

func parseContainerRows(stdout string) []ContainerStatus {
	var out []ContainerStatus
	for _, line := range splitNonEmptyLines(stdout) {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			continue
		}
		out = append(out, ContainerStatus{Name: fields[0], Status: fields[1], Image: fields[2]})
	}
	return out
}

// DockerLogs tails a container's combined stdout/stderr log.
func DockerLogs(ctx context.Context, sess sshpool.Session, container string, tailLines int, maxOutputBytes int64) (text string, truncated bool, err error) {
	if err := validate.ContainerName(container); err != nil {
		return "", false, err
	}
	if err := validate.Lines(tailLines); err != nil {
		return "", false, err
	}

	cmd := fmt.Sprintf(
		"docker logs --tail %d --timestamps %s 2>&1 | head -c %d",
		tailLines, validate.ShellQuote(container), maxOutputBytes,
	)
	stdout, _, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return "", false, err
	}
	if exitCode != 0 {
		return "", false, nil
	}
	return stdout, int64(len(stdout)) > maxOutputBytes, nil
}

// ComposeLogs tails a docker compose project's aggregate log.
func ComposeLogs(ctx context.Context, sess sshpool.Session, project string, tailLines int, maxOutputBytes int64) (text string, truncated bool, err error) {
	if err := validate.ProjectName(project); err != nil {
		return "", false, err
	}
	if err := validate.Lines(tailLines); err != nil {
		return "", false, err
	}

	cmd := fmt.Sprintf(
		"docker compose -p %s logs --tail %d | head -c %d",
		validate.ShellQuote(project), tailLines, maxOutputBytes,
	)
	stdout, _, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return "", false, err
	}
	if exitCode != 0 {
		return "", false, nil
	}
	return stdout, int64(len(stdout)) > maxOutputBytes, nil
}

// ZpoolStatus is one row of `zpool list -Hp`.
type ZpoolStatus struct {
	Name   string
	Size   int64
	Alloc  int64
	Free   int64
	Health string
}

// ZpoolList lists ZFS storage pools. An absent zpool binary is an
// optional-subsystem absence: empty slice, no error.
func ZpoolList(ctx context.Context, sess sshpool.Session) ([]ZpoolStatus, error) {
	stdout, _, exitCode, err := sess.Run(ctx, "zpool list -Hp")
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, nil
	}

	var out []ZpoolStatus
	for _, line := range splitNonEmptyLines(stdout) {
		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			continue
		}
		out = append(out, ZpoolStatus{
			Name:   fields[0],
			Size:   parseInt64(fields[1]),
			Alloc:  parseInt64(fields[2]),
			Free:   parseInt64(fields[3]),
			Health: fields[8],
		})
	}
	return out, nil
}

// ZfsDataset is one row of `zfs list -Hp -r <pool>`.
type ZfsDataset struct {
	Name  string
	Used  int64
	Avail int64
	Refer int64
	Mount string
}

// ZfsList lists datasets under pool, recursively.
func ZfsList(ctx context.Context, sess sshpool.Session, pool string) ([]ZfsDataset, error) {
	if err := validate.ZpoolName(pool); err != nil {
		return nil, err
	}

	cmd := fmt.Sprintf("zfs list -Hp -r %s", validate.ShellQuote(pool))
	stdout, _, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, nil
	}

	var out []ZfsDataset
	for _, line := range splitNonEmptyLines(stdout) {
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		out = append(out, ZfsDataset{
			Name:  fields[0],
			Used:  parseInt64(fields[1]),
			Avail: parseInt64(fields[2]),
			Refer: parseInt64(fields[3]),
			Mount: fields[4],
		})
	}
	return out, nil
}

// ZfsSnapshot is one row of `zfs list -t snapshot -Hp -o name,creation,used`.
type ZfsSnapshot struct {
	Name     string
	Creation int64
	Used     int64
}

// ZfsSnapshots lists snapshots under pool.
func ZfsSnapshots(ctx context.Context, sess sshpool.Session, pool string) ([]ZfsSnapshot, error) {
	if err := validate.ZpoolName(pool); err != nil {
		return nil, err
	}

	cmd := fmt.Sprintf(
		"zfs list -t snapshot -Hp -o name,creation,used -r %s",
		validate.ShellQuote(pool),
	)
	stdout, _, exitCode, err := sess.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, nil
	}

	var out []ZfsSnapshot
	for _, line := range splitNonEmptyLines(stdout) {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		out = append(out, ZfsSnapshot{
			Name:     fields[0],
			Creation: parseInt64(fields[1]),
			Used:     parseInt64(fields[2]),
		})
	}
	return out, nil
}

// SystemLog tails system journal/syslog entries. journalctl is tried first;
// on failure it falls back to /var/log/syslog, then /var/log/messages. Each
// recipe is piped through head, whose exit status masks the recipe's own, so
// a recipe counts as failed when it exits non-zero or prints nothing. If
// none produce output the result is an empty, non-truncated text; only a
// transport failure is returned as an error.
func SystemLog(ctx context.Context, sess sshpool.Session, lines int, maxOutputBytes int64) (text string, truncated bool, err error) {
	if err := validate.Lines(lines); err != nil {
		return "", false, err
	}

	recipes := []string{
		fmt.Sprintf("journalctl -n %d --no-pager", lines),
		fmt.Sprintf("tail -n %d /var/log/syslog", lines),
		fmt.Sprintf("tail -n %d /var/log/messages", lines),
	}

	for _, recipe := range recipes {
		cmd := fmt.Sprintf("%s | head -c %d", recipe, maxOutputBytes)
		stdout, _, exitCode, runErr := sess.Run(ctx, cmd)
		if runErr != nil {
			return "", false, runErr
		}
		if exitCode == 0 && stdout != "" {
			return stdout, int64(len(stdout)) > maxOutputBytes, nil
		}
	}
	return "", false, nil
}

func splitNonEmptyLines(s string) []string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
