package environment

import (
	"context"
	"time"
)

// Result captures the outcome of one command run inside an environment.
// Output holds stdout and stderr interleaved in the order the process
// produced them. A nonzero ReturnCode is normal data, not an error.
type Result struct {
	Output     string
	ReturnCode int
}

// ExecOpts carries optional per-call overrides for Execute.
type ExecOpts struct {
	Cwd     string        // working directory override (empty = configured default)
	Timeout time.Duration // timeout override (<=0 = configured default)
}

// Environment runs shell commands in some execution context.
// Implementations must keep accepting commands after a failed or
// timed-out command; a single bad command does not invalidate them.
type Environment interface {
	// Execute runs a shell command and returns its merged output and
	// exit status. The command string goes through a login shell, so
	// built-ins, globbing and profile-sourced environment are available.
	Execute(ctx context.Context, command string, opts ExecOpts) (Result, error)

	// Cleanup tears down any resources the environment owns. It is
	// idempotent, never blocks on the teardown and never fails.
	Cleanup()

	// TemplateVars exposes the resolved configuration as a plain mapping
	// for prompt-template rendering.
	TemplateVars() map[string]any
}
