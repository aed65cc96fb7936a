package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// LogStore resolves per-run log file locations. The sqlite store implements it.
type LogStore interface {
	RunLogPath(runID string) string
	EnsureRunLogDir(runID string) error
}

// ShellExecutor is the default Executor: it runs the task's command via
// /bin/sh, captures the exit code, and writes combined output to a per-run
// log file. Wizard-collected fields are passed to the command as
// SETUP_<FIELD> environment variables.
type ShellExecutor struct {
	logs   LogStore
	logger *slog.Logger
}

// NewShellExecutor creates the shell-backed executor.
func NewShellExecutor(logs LogStore, logger *slog.Logger) *ShellExecutor {
	return &ShellExecutor{logs: logs, logger: logger}
}

// Execute runs ref.Command synchronously and returns its exit status.
func (e *ShellExecutor) Execute(ctx context.Context, runID string, ref ExecutorRef, fields map[string]string) (int, error) {
	if strings.TrimSpace(ref.Command) == "" {
		return 0, errors.New("executor ref has no command")
	}
	if err := e.logs.EnsureRunLogDir(runID); err != nil {
		return 0, fmt.Errorf("ensure run log dir: %w", err)
	}
	logPath := e.logs.RunLogPath(runID)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", ref.Command) // #nosec G204
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if ref.WorkingDir != nil {
		cmd.Dir = *ref.WorkingDir
	}
	cmd.Env = append(os.Environ(), fieldEnv(fields)...)

	e.logger.Debug("running command", "run_id", runID, "log", logPath)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("start command: %w", err)
	}
	return 0, nil
}

func fieldEnv(fields map[string]string) []string {
	env := make([]string, 0, len(fields))
	for name, value := range fields {
		env = append(env, "SETUP_"+envName(name)+"="+value)
	}
	return env
}

func envName(field string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(field) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
