package environment

import "errors"

var (
	// ErrMissingImage is returned by Start when neither an image nor an
	// existing container reference was configured.
	ErrMissingImage = errors.New("image is required when starting a new container")

	// ErrResolveContainer is returned when a container name resolves to
	// an empty id.
	ErrResolveContainer = errors.New("could not resolve container id")

	// ErrContainerNotRunning is returned when an adopted container is
	// not reported as running. Adoption never proceeds on a stopped
	// container.
	ErrContainerNotRunning = errors.New("container is not running")

	// ErrCommandTimeout is returned when a bounded engine invocation
	// exceeds its wall-clock budget. No partial output is recovered.
	ErrCommandTimeout = errors.New("command timed out")
)
