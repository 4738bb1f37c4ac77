package discovery

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
)

// Runner executes a shell command and returns its combined output. The
// engine only ever sees text, which keeps it unit-testable with canned
// tool output and keeps process execution in exactly one place.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// ShellRunner executes commands through the platform shell.
type ShellRunner struct{}

// NewShellRunner creates a runner backed by /bin/sh (cmd.exe on Windows).
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run executes the command and returns its combined stdout and stderr.
// A non-zero exit with output is not an error here: grep-style pipelines
// exit non-zero on no matches, and "no matches" is a parse concern.
func (r *ShellRunner) Run(ctx context.Context, command string) (string, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", command)
	}

	output, err := cmd.CombinedOutput()
	text := string(output)
	if err != nil && strings.TrimSpace(text) == "" {
		return "", err
	}
	return text, nil
}
