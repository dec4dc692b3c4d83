package crx_arm

import (
	"github.com/pkg/errors"
)

var (
	// ErrEnvironmentUnavailable means the solver runtime cannot be reached at all.
	// It is fatal to the viewer and reported once, at startup.
	ErrEnvironmentUnavailable = errors.New("kinematics solver environment unavailable")

	// ErrNotInitialized is returned for solver calls made before Initialize succeeded.
	ErrNotInitialized = errors.New("kinematics solver not initialized")

	// ErrNoResult is returned by the bridge when forward kinematics produced nothing.
	ErrNoResult = errors.New("solver returned no result")

	// ErrInvalidTransition is returned when a manipulation event arrives in the wrong state.
	ErrInvalidTransition = errors.New("invalid manipulation transition")
)

// SolverError is a transient failure of a single solver call. Callers log it, abandon the
// current cycle and keep their previous state.
type SolverError struct {
	Op  string
	Err error
}

func (e *SolverError) Error() string {
	return "solver " + e.Op + ": " + e.Err.Error()
}

func (e *SolverError) Unwrap() error {
	return e.Err
}

func newSolverError(op string, err error) error {
	return &SolverError{Op: op, Err: err}
}

// IsSolverError reports whether err is, or wraps, a SolverError.
func IsSolverError(err error) bool {
	var se *SolverError
	return errors.As(err, &se)
}
