package environment

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
)

// ExecutableEnvVar overrides the container engine executable process-wide.
// It is read when defaults are applied, so a podman setup only needs
// MINISWE_DOCKER_EXECUTABLE=podman.
const ExecutableEnvVar = "MINISWE_DOCKER_EXECUTABLE"

// Config holds the declarative settings for a container-backed environment.
// Construction never fails: missing fields are only checked at the point
// where they are needed (a missing image is an error when Start has to
// create a container, not before).
type Config struct {
	// Image to start a new container from. Ignored when an existing
	// container is adopted via ContainerID or ContainerName.
	Image string
	// Cwd is the working directory commands execute in. Default "/".
	Cwd string
	// ContainerID adopts an existing container verbatim, without any
	// liveness check.
	ContainerID string
	// ContainerName adopts an existing container by name. The name is
	// resolved to an id and the container must be running.
	ContainerName string
	// ManageContainer forces ownership of the container for cleanup
	// purposes. When nil it resolves to true only if no existing
	// container was supplied.
	ManageContainer *bool
	// Env variables always injected into each command.
	Env map[string]string
	// ForwardEnv variables are copied from the host environment at each
	// command invocation, if set there. Env entries win on conflict.
	ForwardEnv []string
	// Timeout bounds each command. Default 30s.
	Timeout time.Duration
	// Executable is the engine binary. Defaults from ExecutableEnvVar,
	// else "docker".
	Executable string
	// RunArgs are extra arguments for the engine run call. A nil slice
	// defaults to ["--rm"]; an empty non-nil slice means none.
	RunArgs []string
	// ContainerLifetime is how long a newly started container stays
	// alive, in sleep(1) duration format. Default "2h".
	ContainerLifetime string
	// PullTimeout bounds the start and inspect calls. It is separate
	// from Timeout because image pulls can be slow. Default 2m.
	PullTimeout time.Duration
	// Memory and CPUs, when set, are appended to the run arguments as
	// --memory / --cpus resource limits.
	Memory string
	CPUs   string
}

// withDefaults returns a copy of the config with defaults applied.
func (c Config) withDefaults() Config {
	if c.Cwd == "" {
		c.Cwd = "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Executable == "" {
		c.Executable = getEnvOrDefault(ExecutableEnvVar, "docker")
	}
	if c.RunArgs == nil {
		c.RunArgs = []string{"--rm"}
	}
	if c.ContainerLifetime == "" {
		c.ContainerLifetime = "2h"
	}
	if c.PullTimeout <= 0 {
		c.PullTimeout = 2 * time.Minute
	}
	return c
}

// resolvedRunArgs merges RunArgs with the resource-limit flags. The
// memory string is validated here rather than at construction, keeping
// the lazy validation behavior of the rest of the config.
func (c Config) resolvedRunArgs() ([]string, error) {
	args := append([]string(nil), c.RunArgs...)
	if c.Memory != "" {
		if _, err := units.RAMInBytes(c.Memory); err != nil {
			return nil, fmt.Errorf("invalid memory limit %q: %w", c.Memory, err)
		}
		args = append(args, "--memory", c.Memory)
	}
	if c.CPUs != "" {
		args = append(args, "--cpus", c.CPUs)
	}
	return args, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
