package orchestrator

import (
	"errors"
	"fmt"
)

// ErrRunFinished is returned when a run that already reached DONE or FAILED
// is started again.
var ErrRunFinished = errors.New("run already finished")

// TransportError reports that the model could not be reached for a turn,
// after retries were exhausted or the failure was permanent.
type TransportError struct {
	Turn     int
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model transport failed on turn %d after %d attempt(s): %v", e.Turn, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TerminationError reports a run that stopped without a finalized Venn result.
type TerminationError struct {
	Turns  int
	Reason string
	Err    error // Cause, e.g. context.Canceled; may be nil
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("run terminated after %d turn(s) without a finalized venn result: %s", e.Turns, e.Reason)
}

func (e *TerminationError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// IsTerminationError returns true if err is or wraps a *TerminationError.
func IsTerminationError(err error) bool {
	var t *TerminationError
	return errors.As(err, &t)
}
