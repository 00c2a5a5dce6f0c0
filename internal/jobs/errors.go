package jobs

import (
	"errors"
	"fmt"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

var (
	// ErrNotFound indicates an unknown or expired job id.
	ErrNotFound = errors.New("job not found")

	// ErrNotReady indicates the job has no result yet (or failed).
	ErrNotReady = errors.New("job not complete")

	// ErrClosed is returned once the manager is shutting down.
	ErrClosed = errors.New("job manager closed")

	errPanic = errors.New("generation panicked")
)

// NotReadyError carries the state of a job whose result was requested too
// early. It matches ErrNotReady with errors.Is.
type NotReadyError struct {
	State domain.JobState
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s (status %s)", ErrNotReady, e.State)
}

func (e *NotReadyError) Is(target error) bool { return target == ErrNotReady }
