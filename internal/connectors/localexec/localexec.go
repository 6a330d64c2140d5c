// Package localexec provides a local command executor with an allowlist.
package localexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fentz26/stockwatch/internal/connectors"
)

// DefaultAllowed is the allowlist used when none is configured.
var DefaultAllowed = []string{"python", "python3"}

// LocalExec implements the Connector interface for local command execution.
type LocalExec struct {
	workDir string
	allowed map[string]bool
}

// New creates a new LocalExec connector. Commands are matched by base name.
func New(workDir string, allowed []string) *LocalExec {
	if len(allowed) == 0 {
		allowed = DefaultAllowed
	}
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[filepath.Base(name)] = true
	}
	return &LocalExec{workDir: workDir, allowed: set}
}

// Name returns the connector identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// IsAllowed checks if a command is in the allowlist.
func (l *LocalExec) IsAllowed(cmd string) bool {
	if cmd == "" {
		return false
	}
	return l.allowed[filepath.Base(cmd)]
}

// Execute runs a command if it's in the allowlist. A non-zero exit status is
// reported in the result, not as an error.
func (l *LocalExec) Execute(ctx context.Context, cmd string, args []string, env []string) (*connectors.ExecResult, error) {
	if !l.IsAllowed(cmd) {
		return nil, fmt.Errorf("command not allowed: %s %s", cmd, strings.Join(args, " "))
	}

	execCmd := exec.CommandContext(ctx, cmd, args...)
	if l.workDir != "" {
		execCmd.Dir = l.workDir
	}
	if len(env) > 0 {
		execCmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return nil, fmt.Errorf("exec error: %w", err)
		}
	}

	return &connectors.ExecResult{
		Command:  cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
