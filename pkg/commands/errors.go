package commands

import "errors"

var (
	// ErrFailedOperations is returned by run in strict mode when any operation failed.
	ErrFailedOperations = errors.New("one or more operations failed")
	// ErrInterrupted is returned when a run was cancelled before every operation executed.
	ErrInterrupted = errors.New("interrupted")
)

// UsageError marks a bad flag, argument or configuration value.
type UsageError struct {
	Err error
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *UsageError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	if err == nil {
		return nil
	}

	return &UsageError{Err: err}
}
