// Package optest provides utilities for operations testing.
package optest

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/logger"
)

// NewSequencer creates a sequencer for testing with a test logger and a lock file inside the
// test's temporary directory.
func NewSequencer(t *testing.T, sys host.System, opts ...operations.SequencerOption) *operations.Sequencer {
	t.Helper()

	base := []operations.SequencerOption{
		operations.WithLock(filepath.Join(t.TempDir(), "reident.lock")),
	}

	return operations.NewSequencer(logger.Test(t), sys, append(base, opts...)...)
}

// Counter counts how many times a mutation was called.
type Counter struct {
	n atomic.Int32
}

// Calls returns the number of calls recorded.
func (c *Counter) Calls() int {
	return int(c.n.Load())
}

// Succeed returns an operation whose mutation always succeeds.
func Succeed(id string, c *Counter, opts ...operations.Option) *operations.Operation {
	return operations.NewOperation(id, semver.MustParse("1.0.0"), "succeeds",
		func(context.Context, host.System, string) (operations.Change, error) {
			if c != nil {
				c.n.Add(1)
			}

			return operations.Change{Detail: id + " applied"}, nil
		}, opts...)
}

// Fail returns an operation whose mutation always fails with msg.
func Fail(id, msg string, c *Counter, opts ...operations.Option) *operations.Operation {
	return operations.NewOperation(id, semver.MustParse("1.0.0"), "fails",
		func(context.Context, host.System, string) (operations.Change, error) {
			if c != nil {
				c.n.Add(1)
			}

			return operations.Change{}, errors.New(msg)
		}, opts...)
}
