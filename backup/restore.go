package backup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/logger"
)

// RestoreResult is the outcome of restoring one identifier.
type RestoreResult struct {
	OperationName string            `json:"operation_name" yaml:"operation_name" toml:"operation_name"`
	PriorValue    string            `json:"prior_value" yaml:"prior_value" toml:"prior_value"`
	Status        operations.Status `json:"status" yaml:"status" toml:"status"`
	Detail        string            `json:"detail" yaml:"detail" toml:"detail"`
}

// Restore puts back the values in records through each operation's restore function.
//
// When an operation was backed up more than once the oldest record wins, since it holds the
// value the host had before reident first touched it. Identifiers are restored in the reverse
// of the order they were first changed. Records for unknown or non-restorable operations are
// skipped. The returned error joins every restore failure.
//
// Each restore is bounded by timeout, or operations.DefaultTimeout when it is not positive. Like
// a run, cancelling ctx does not interrupt a restore that has started.
func Restore(
	ctx context.Context, lggr logger.Logger, sys host.System, reg *operations.Registry, records []Record,
	timeout time.Duration,
) ([]RestoreResult, error) {
	if timeout <= 0 {
		timeout = operations.DefaultTimeout
	}

	seen := map[string]bool{}
	var oldest []Record
	for _, r := range records {
		if !seen[r.OperationName] {
			seen[r.OperationName] = true
			oldest = append(oldest, r)
		}
	}
	slices.Reverse(oldest)

	var (
		results []RestoreResult
		errs    []error
	)
	for _, r := range oldest {
		res := RestoreResult{OperationName: r.OperationName, PriorValue: r.PriorValue}

		op, ok := reg.Lookup(r.OperationName)
		switch {
		case !ok:
			res.Status, res.Detail = operations.StatusSkipped, "unknown operation"
		case !op.CanRestore():
			res.Status, res.Detail = operations.StatusSkipped, "operation cannot be restored"
		default:
			lggr.Infow("Restoring prior value", "id", op.ID(), "value", r.PriorValue)
			if err := restoreOne(ctx, sys, op, r.PriorValue, timeout); err != nil {
				lggr.Errorw("Restore failed", "id", op.ID(), "error", err)
				res.Status, res.Detail = operations.StatusFailed, err.Error()
				errs = append(errs, fmt.Errorf("restore %s: %w", op.ID(), err))
			} else {
				res.Status, res.Detail = operations.StatusSuccess, "restored"
			}
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

func restoreOne(ctx context.Context, sys host.System, op *operations.Operation, prior string, timeout time.Duration) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	return op.Restore(rctx, sys, prior)
}
