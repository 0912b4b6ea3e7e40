package operations

import (
	"errors"
	"fmt"

	"github.com/reident/reident/host"
)

var (
	// ErrDuplicateName is returned when an operation ID is registered or selected twice.
	ErrDuplicateName = errors.New("duplicate operation name")
	// ErrUnknownOperation is returned when a selection names an unregistered operation.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrRunInProgress is returned when a run is started while another one holds the lock.
	ErrRunInProgress = errors.New("another run is in progress")
	// ErrTimeout is the cause recorded when a mutation exceeds the per-operation timeout.
	ErrTimeout = errors.New("timed out")
	// ErrNotRestorable is returned when restoring an operation without a restore function.
	ErrNotRestorable = errors.New("operation cannot be restored")
)

// MutationError is returned when the underlying host change did not apply.
type MutationError struct {
	Operation string
	// Output is the diagnostic output of the failing command, if any.
	Output string
	Err    error
}

// NewMutationError wraps err for operation id, extracting command output when err carries a
// *host.CommandError.
func NewMutationError(id string, err error) *MutationError {
	me := &MutationError{Operation: id, Err: err}
	var cerr *host.CommandError
	if errors.As(err, &cerr) {
		me.Output = cerr.Output()
	}

	return me
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("operation %s: mutation failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// PrivilegeError aborts a run before any operation executes.
type PrivilegeError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *PrivilegeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("environment check failed: %s: %v", e.Reason, e.Err)
	}

	return "environment check failed: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *PrivilegeError) Unwrap() error {
	return e.Err
}
