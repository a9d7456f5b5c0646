package environment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// engineError reports a failed engine invocation. The caller sees the
// underlying exit error plus whatever the engine wrote to stderr.
type engineError struct {
	args   []string
	stderr string
	err    error
}

func (e *engineError) Error() string {
	msg := fmt.Sprintf("engine call %q failed: %v", strings.Join(e.args, " "), e.err)
	if s := strings.TrimSpace(e.stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *engineError) Unwrap() error { return e.err }

// runEngine invokes the engine executable and returns its trimmed stdout.
// Nonzero exit or exceeding the timeout is fatal. Used for the lifecycle
// calls (run/inspect) where the output is an identifier, not command data.
func runEngine(ctx context.Context, timeout time.Duration, exe string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(exe, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	waitErr := runBounded(cctx, cmd)
	if err := boundErr(cctx, timeout); err != nil {
		return "", err
	}
	if waitErr != nil {
		return "", &engineError{args: append([]string{exe}, args...), stderr: stderr.String(), err: waitErr}
	}
	return strings.TrimSpace(toValidText(stdout.String())), nil
}

// runMerged invokes a process with stdout and stderr interleaved into a
// single buffer, in the order the process produced them. A nonzero exit
// status comes back as Result data, not as an error.
func runMerged(ctx context.Context, timeout time.Duration, dir string, env []string, exe string, args ...string) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(exe, args...)
	cmd.Dir = dir
	cmd.Env = env
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	waitErr := runBounded(cctx, cmd)
	if err := boundErr(cctx, timeout); err != nil {
		return Result{}, err
	}
	res := Result{Output: toValidText(buf.String())}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ReturnCode = exitErr.ExitCode()
			return res, nil
		}
		return Result{}, waitErr
	}
	return res, nil
}

// runBounded starts the command in its own process group and kills the
// whole group when the context expires, so shell children cannot outlive
// the timeout. Returns the wait error; the caller inspects the context
// to distinguish a timeout from a real failure.
func runBounded(ctx context.Context, cmd *exec.Cmd) error {
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			killProcessGroup(cmd)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	return waitErr
}

// boundErr maps an expired context to the timeout error. No partial
// output is reported alongside it.
func boundErr(ctx context.Context, timeout time.Duration) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrCommandTimeout, timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return nil
}

// toValidText makes captured output safe to handle as text. Non-UTF-8
// bytes are replaced rather than aborting the call.
func toValidText(s string) string {
	return strings.ToValidUTF8(s, "�")
}
