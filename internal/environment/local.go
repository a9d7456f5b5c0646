package environment

import (
	"context"
	"os"
	"sort"
	"time"
)

// LocalConfig holds the settings for host execution.
type LocalConfig struct {
	Cwd     string            // working directory (empty = process cwd)
	Env     map[string]string // variables layered over the host environment
	Timeout time.Duration     // default command timeout
}

// LocalEnvironment runs commands directly on the host through a login
// shell. There is no isolation and nothing to tear down; it exists for
// setups where no container engine is available or wanted.
type LocalEnvironment struct {
	config LocalConfig
}

// NewLocalEnvironment builds a host-execution environment.
func NewLocalEnvironment(cfg LocalConfig) *LocalEnvironment {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LocalEnvironment{config: cfg}
}

// Execute runs the command with bash -lc. Configured Env entries are
// appended after the inherited host environment so they win on conflict.
func (e *LocalEnvironment) Execute(ctx context.Context, command string, opts ExecOpts) (Result, error) {
	cwd := opts.Cwd
	if cwd == "" {
		cwd = e.config.Cwd
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.config.Timeout
	}

	env := os.Environ()
	keys := make([]string, 0, len(e.config.Env))
	for key := range e.config.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+e.config.Env[key])
	}

	return runMerged(ctx, timeout, cwd, env, "bash", "-lc", command)
}

// Cleanup is a no-op: nothing on the host is owned by this environment.
func (e *LocalEnvironment) Cleanup() {}

// TemplateVars exposes the resolved configuration for prompt templating.
func (e *LocalEnvironment) TemplateVars() map[string]any {
	return map[string]any{
		"cwd":     e.config.Cwd,
		"env":     e.config.Env,
		"timeout": e.config.Timeout,
	}
}
