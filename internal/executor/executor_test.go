package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jmagar/scoutmcp/internal/sshpool"
)

// fakeSession is a scripted sshpool.Session: each call to Run returns the
// response whose key is a prefix of the command (responses are reusable, not
// consumed), or exit code 127 when none matches, to keep tests readable
// without a real SSH server.
type fakeSession struct {
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

func (f *fakeSession) Run(ctx context.Context, cmd string) (string, string, int, error) {
	f.calls = append(f.calls, cmd)
	for prefix, resp := range f.responses {
		if strings.HasPrefix(cmd, prefix) {
			return resp.stdout, resp.stderr, resp.exitCode, resp.err
		}
	}
	return "", "", 127, nil
}

func (f *fakeSession) NewSFTPClient() (sshpool.SFTPClient, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeSession) Open() bool  { return true }
func (f *fakeSession) Close() error { return nil }

func TestStatPath_Directory(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		`stat -c "%F"`: {stdout: "directory\n", exitCode: 0},
	}}
	kind, err := StatPath(context.Background(), sess, "/var/log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != StatDirectory {
		t.Errorf("kind = %v, want StatDirectory", kind)
	}
}

func TestStatPath_Missing(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		`stat -c "%F"`: {exitCode: 1},
	}}
	kind, err := StatPath(context.Background(), sess, "/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != StatMissing {
		t.Errorf("kind = %v, want StatMissing", kind)
	}
}

func TestStatPath_SymlinkTreatedAsFile(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		`stat -c "%F"`: {stdout: "symbolic link\n", exitCode: 0},
	}}
	kind, err := StatPath(context.Background(), sess, "/etc/foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != StatFile {
		t.Errorf("kind = %v, want StatFile for anything not 'directory'", kind)
	}
}

func TestCatFile_TruncationBoundary(t *testing.T) {
	exact := strings.Repeat("a", 10)
	sess := &fakeSession{responses: map[string]fakeResponse{
		"head -c": {stdout: exact, exitCode: 0},
	}}
	text, truncated, err := CatFile(context.Background(), sess, "/f", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truncated {
		t.Error("exactly max_bytes must not be reported as truncated")
	}
	if text != exact {
		t.Errorf("text = %q", text)
	}
}

func TestCatFile_TruncatedWhenOverLimit(t *testing.T) {
	over := strings.Repeat("a", 11)
	sess := &fakeSession{responses: map[string]fakeResponse{
		"head -c": {stdout: over, exitCode: 0},
	}}
	_, truncated, err := CatFile(context.Background(), sess, "/f", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !truncated {
		t.Error("expected truncated=true when output exceeds max_bytes")
	}
}

func TestCatFile_NonZeroExitIsRemoteError(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		"head -c": {stderr: "permission denied", exitCode: 1},
	}}
	_, _, err := CatFile(context.Background(), sess, "/f", 10)
	if err == nil {
		t.Fatal("expected RemoteError for non-zero exit")
	}
}

func TestTreeDir_FallsBackToFind(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		"tree -L": {exitCode: 127}, // tree not installed
		"find":    {stdout: "/var\n/var/log\n", exitCode: 0},
	}}
	text, err := TreeDir(context.Background(), sess, "/var", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "/var/log") {
		t.Errorf("expected fallback find output, got %q", text)
	}
}

func TestTreeDir_RejectsBadDepth(t *testing.T) {
	sess := &fakeSession{}
	if _, err := TreeDir(context.Background(), sess, "/var", 0); err == nil {
		t.Error("expected validation error for depth 0")
	}
}

func TestRunCommand_ExitCodeSurfacesAsField(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		"cd": {stdout: "out", stderr: "", exitCode: 124},
	}}
	res, err := RunCommand(context.Background(), sess, "/var/log", "ls -la", 5, 1000)
	if err != nil {
		t.Fatalf("RunCommand must never error on non-zero exit: %v", err)
	}
	if res.ExitCode != 124 {
		t.Errorf("exit code = %d, want 124", res.ExitCode)
	}
}

func TestRunCommand_RejectsDisallowedCommand(t *testing.T) {
	sess := &fakeSession{}
	if _, err := RunCommand(context.Background(), sess, "/var/log", "rm -rf /", 5, 1000); err == nil {
		t.Error("expected validation error for disallowed command")
	}
}

func TestDockerPS_ParsesRows(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		"docker ps": {stdout: "web\tUp 2 hours\tnginx:latest\ndb\tUp 1 hour\tpostgres:16\n", exitCode: 0},
	}}
	rows, err := DockerPS(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "web" || rows[1].Image != "postgres:16" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestDockerPS_AbsentDockerYieldsEmpty(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		"docker ps": {exitCode: 127},
	}}
	rows, err := DockerPS(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != nil {
		t.Errorf("expected nil/empty rows, got %+v", rows)
	}
}

func TestSystemLog_FallsBackThroughJournalSyslogMessages(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		"journalctl":              {exitCode: 127},
		"tail -n 10 /var/log/syslog":   {exitCode: 1},
		"tail -n 10 /var/log/messages": {stdout: "Jul 30 syslog line\n", exitCode: 0},
	}}
	text, _, err := SystemLog(context.Background(), sess, 10, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "syslog line") {
		t.Errorf("expected messages fallback text, got %q", text)
	}
}

func TestSystemLog_AllUnavailableYieldsEmptyNoError(t *testing.T) {
	sess := &fakeSession{responses: map[string]fakeResponse{
		"journalctl":                    {exitCode: 127},
		"tail -n 10 /var/log/syslog":    {exitCode: 1},
		"tail -n 10 /var/log/messages":  {exitCode: 1},
	}}
	text, truncated, err := SystemLog(context.Background(), sess, 10, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" || truncated {
		t.Errorf("expected empty result, got text=%q truncated=%v", text, truncated)
	}
}
