package operations

import (
	"context"
	"fmt"

	"github.com/reident/reident/host"
)

// Check evaluates the precondition of op. It never panics and never returns an error: a
// precondition that panics is reported as a failed probe. Operations without a precondition
// are always satisfied.
func Check(ctx context.Context, op *Operation, sys host.System) (v Verdict) {
	if op.check == nil {
		return Satisfied()
	}

	defer func() {
		if r := recover(); r != nil {
			v = ProbeFailed(fmt.Errorf("panic: %v", r))
		}
	}()

	return op.check(ctx, sys)
}

// EnvironmentCheck runs once before a sequencer run. A non-nil error aborts the run before any
// operation executes.
type EnvironmentCheck func(ctx context.Context, sys host.System) error

// AllOf combines checks, returning the first failure.
func AllOf(checks ...EnvironmentCheck) EnvironmentCheck {
	return func(ctx context.Context, sys host.System) error {
		for _, c := range checks {
			if c == nil {
				continue
			}
			if err := c(ctx, sys); err != nil {
				return err
			}
		}

		return nil
	}
}
