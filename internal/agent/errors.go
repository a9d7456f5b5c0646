package agent

import (
	"errors"
	"fmt"
)

// LimitsExceededError is returned by Run when the step or cost budget
// is exhausted before the task was submitted.
type LimitsExceededError struct {
	Steps int
	Cost  float64
}

func (e *LimitsExceededError) Error() string {
	return fmt.Sprintf("agent limits exceeded after %d steps ($%.4f)", e.Steps, e.Cost)
}

// IsLimitsExceeded reports whether err is a limits failure.
func IsLimitsExceeded(err error) bool {
	var le *LimitsExceededError
	return errors.As(err, &le)
}

// errFormat marks an assistant reply that did not contain exactly one
// bash code block. It is handled inside the loop, never returned.
var errFormat = errors.New("response must contain exactly one bash code block")
