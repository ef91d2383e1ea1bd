// Package runner executes external programs (tesseract, ffmpeg) behind an
// interface so callers can stub them in tests.
package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run executes name with args and returns its captured output. stderr is
// logged, capped at 8KB, when the command fails.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := r.logger.With("cmd", name)
	log.Debug("exec start", "args", strings.Join(args, " "))

	began := time.Now()
	err := cmd.Run()
	elapsed := time.Since(began)

	if err != nil {
		log.Error("exec failed", "exit_code", ExitCode(err), "elapsed", elapsed,
			"error", err, "stderr", Truncate(stderr.String(), 8<<10))
		return stdout.Bytes(), stderr.Bytes(), err
	}
	log.Debug("exec ok", "elapsed", elapsed, "stdout_bytes", stdout.Len())
	return stdout.Bytes(), stderr.Bytes(), nil
}

// ExitCode reports the process exit status carried by err, -1 when err
// did not come from a finished process.
func ExitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// Truncate caps s at max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// SplitCommand splits a command line on whitespace and substitutes
// "{key}" placeholders from vars.
func SplitCommand(line string, vars map[string]string) []string {
	fields := strings.Fields(line)
	for i, f := range fields {
		for k, v := range vars {
			f = strings.ReplaceAll(f, "{"+k+"}", v)
		}
		fields[i] = f
	}
	return fields
}
