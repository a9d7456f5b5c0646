package environment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DockerEnvironment executes commands inside a single container driven
// through the engine CLI (docker, podman, or anything argument-compatible).
// The container is either started fresh or adopted from the configuration;
// the resolved id never changes afterwards.
//
// Callers use the two-phase pattern:
//
//	env := environment.NewDockerEnvironment(cfg)
//	defer env.Cleanup()
//	if err := env.Start(ctx); err != nil { ... }
//
// so teardown runs exactly once on every exit path.
type DockerEnvironment struct {
	config Config
	logger *log.Logger

	// lookupEnv resolves forwarded variables. Injectable so tests do not
	// have to mutate the process environment; reads happen at each
	// Execute call, not at construction.
	lookupEnv func(string) (string, bool)

	containerID string
	owns        bool

	mu      sync.Mutex
	cleaned bool
}

// Option configures a DockerEnvironment at construction.
type Option func(*DockerEnvironment)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *DockerEnvironment) { e.logger = l }
}

// WithEnvLookup replaces the host environment lookup used for forwarded
// variables.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(e *DockerEnvironment) { e.lookupEnv = fn }
}

// NewDockerEnvironment builds an environment from the given config.
// It never fails: validation happens when Start needs a field.
func NewDockerEnvironment(cfg Config, opts ...Option) *DockerEnvironment {
	e := &DockerEnvironment{
		config:    cfg.withDefaults(),
		logger:    log.Default(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start acquires the container handle. With a configured id the id is
// adopted verbatim and no engine call is made; with a name the container
// is resolved and must be running; otherwise a new container is started
// from the configured image. Any engine failure is fatal to acquisition
// and is not retried.
func (e *DockerEnvironment) Start(ctx context.Context) error {
	switch {
	case e.config.ContainerID != "":
		// Caller-supplied ids are trusted as-is; only names get the
		// liveness check.
		e.containerID = e.config.ContainerID
	case e.config.ContainerName != "":
		id, err := e.resolveContainerID(ctx, e.config.ContainerName)
		if err != nil {
			return err
		}
		e.containerID = id
	default:
		id, err := e.startContainer(ctx)
		if err != nil {
			return err
		}
		e.containerID = id
	}
	e.owns = e.ownsContainer()
	return nil
}

// ownsContainer decides whether Cleanup may destroy the handle. Computed
// once after acquisition.
func (e *DockerEnvironment) ownsContainer() bool {
	if e.config.ManageContainer != nil {
		return *e.config.ManageContainer
	}
	return e.config.ContainerID == "" && e.config.ContainerName == ""
}

// startContainer runs a new detached container that idles on a long
// sleep until commands are exec'd into it. Bounded by PullTimeout since
// the image may need pulling. The trimmed stdout is the container id.
func (e *DockerEnvironment) startContainer(ctx context.Context) (string, error) {
	if e.config.Image == "" {
		return "", ErrMissingImage
	}
	runArgs, err := e.config.resolvedRunArgs()
	if err != nil {
		return "", err
	}

	name := "miniswe-" + uuid.NewString()[:8]
	args := []string{"run", "-d", "--name", name, "-w", e.config.Cwd}
	args = append(args, runArgs...)
	args = append(args, e.config.Image, "sleep", e.config.ContainerLifetime)

	e.logger.Printf("Starting container with command: %s %s", e.config.Executable, strings.Join(args, " "))
	id, err := runEngine(ctx, e.config.PullTimeout, e.config.Executable, args...)
	if err != nil {
		return "", err
	}
	e.logger.Printf("Started container %s with ID %s", name, id)
	return id, nil
}

// resolveContainerID turns a container name into its canonical id and
// verifies the container is running. An id alone does not guarantee
// liveness, hence the second inspect.
func (e *DockerEnvironment) resolveContainerID(ctx context.Context, name string) (string, error) {
	id, err := runEngine(ctx, e.config.PullTimeout, e.config.Executable, "inspect", "-f", "{{.Id}}", name)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w for %s", ErrResolveContainer, name)
	}
	state, err := runEngine(ctx, e.config.PullTimeout, e.config.Executable, "inspect", "-f", "{{.State.Running}}", name)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(state, "true") {
		return "", fmt.Errorf("%w: %s", ErrContainerNotRunning, name)
	}
	return id, nil
}

// Execute runs a shell command inside the container. Forwarded variables
// are read from the host environment at call time and injected first;
// explicit Env entries are injected after them so they win on conflict.
// A nonzero exit status is returned as data, not as an error, and a
// timed-out command does not invalidate the container for later calls.
func (e *DockerEnvironment) Execute(ctx context.Context, command string, opts ExecOpts) (Result, error) {
	if e.containerID == "" {
		return Result{}, errors.New("container not started")
	}

	cwd := opts.Cwd
	if cwd == "" {
		cwd = e.config.Cwd
	}

	args := []string{"exec", "-w", cwd}
	for _, key := range e.config.ForwardEnv {
		if value, ok := e.lookupEnv(key); ok {
			args = append(args, "-e", key+"="+value)
		}
	}
	keys := make([]string, 0, len(e.config.Env))
	for key := range e.config.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-e", key+"="+e.config.Env[key])
	}
	args = append(args, e.containerID, "bash", "-lc", command)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.config.Timeout
	}
	return runMerged(ctx, timeout, "", nil, e.config.Executable, args...)
}

// Cleanup stops and removes the container if this instance owns it.
// The stop/remove pipeline is fired detached and never observed, so
// teardown cannot block or fail the caller. Safe to call repeatedly and
// on an environment that never started.
func (e *DockerEnvironment) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cleaned || !e.owns || e.containerID == "" {
		return
	}
	e.cleaned = true

	exe := e.config.Executable
	pipeline := fmt.Sprintf("(timeout 60 %s stop %s || %s rm -f %s) >/dev/null 2>&1 &",
		exe, e.containerID, exe, e.containerID)
	cmd := exec.Command("/bin/sh", "-c", pipeline)
	if err := cmd.Start(); err != nil {
		return
	}
	// Reap the short-lived shell without waiting on the teardown itself.
	go func() { _ = cmd.Wait() }()
}

// TemplateVars exposes the resolved configuration for prompt templating.
func (e *DockerEnvironment) TemplateVars() map[string]any {
	return map[string]any{
		"image":              e.config.Image,
		"cwd":                e.config.Cwd,
		"container_id":       e.config.ContainerID,
		"container_name":     e.config.ContainerName,
		"manage_container":   e.config.ManageContainer,
		"env":                e.config.Env,
		"forward_env":        e.config.ForwardEnv,
		"timeout":            e.config.Timeout,
		"executable":         e.config.Executable,
		"run_args":           e.config.RunArgs,
		"container_lifetime": e.config.ContainerLifetime,
		"pull_timeout":       e.config.PullTimeout,
		"memory":             e.config.Memory,
		"cpus":               e.config.CPUs,
	}
}
