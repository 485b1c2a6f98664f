package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmagar/scoutmcp/internal/scouterr"
	"github.com/jmagar/scoutmcp/internal/sshpool"
	"github.com/jmagar/scoutmcp/internal/validate"
)

// schedulerTimeoutSlack is added on top of the shell-level `timeout` so the
// scheduler-level deadline below always fires after, never before, it. It
// is the backstop for a wedged remote shell or TTY that ignores timeout(1).
const schedulerTimeoutSlack = 5 * time.Second

// CommandResult is the normalized stdout/stderr/exit-code triple. ExitCode
// 124 means the shell-level timeout fired.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunCommand validates and runs a caller-supplied shell command inside
// workingDir, bounded by timeoutSeconds and maxOutputBytes. It never
// returns an error for a non-zero exit; the caller observes ExitCode.
func RunCommand(ctx context.Context, sess sshpool.Session, workingDir, command string, timeoutSeconds int, maxOutputBytes int64) (CommandResult, error) {
	cleanDir, err := validate.Path(workingDir)
	if err != nil {
		return CommandResult{}, err
	}
	cmdName, args, err := validate.Command(command)
	if err != nil {
		return CommandResult{}, err
	}

	quotedArgs := make([]string, len(args))
	for i, a := range args {
		quotedArgs[i] = validate.ShellQuote(a)
	}

	shell := fmt.Sprintf(
		"cd %s && timeout %d %s %s | head -c %d",
		validate.ShellQuote(cleanDir),
		timeoutSeconds,
		validate.ShellQuote(cmdName),
		strings.Join(quotedArgs, " "),
		maxOutputBytes,
	)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second+schedulerTimeoutSlack)
	defer cancel()

	stdout, stderr, exitCode, err := sess.Run(runCtx, shell)
	if err != nil {
		return CommandResult{}, fmt.Errorf("%w: run_command: %v", scouterr.ErrConnection, err)
	}
	return CommandResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}
