package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/commands"
)

func Test_exitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give error
		want int
	}{
		{name: "success", give: nil, want: exitOK},
		{name: "failed operations", give: fmt.Errorf("%w: 1 of 5", commands.ErrFailedOperations), want: exitFailed},
		{name: "restore failure", give: errors.New("restore hostname: Access denied"), want: exitFailed},
		{name: "usage", give: &commands.UsageError{Err: errors.New("unknown flag: --force")}, want: exitUsage},
		{
			name: "usage wrapping an operation error",
			give: &commands.UsageError{Err: fmt.Errorf("select %q: %w", "x", operations.ErrUnknownOperation)},
			want: exitUsage,
		},
		{name: "privilege", give: &operations.PrivilegeError{Reason: "must run as root"}, want: exitPrivilege},
		{name: "run in progress", give: operations.ErrRunInProgress, want: exitInProgress},
		{name: "interrupted", give: commands.ErrInterrupted, want: exitInterrupted},
		{name: "context cancelled", give: fmt.Errorf("probe: %w", context.Canceled), want: exitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, exitCode(tt.give))
		})
	}
}

func Test_run_Usage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, exitUsage, run([]string{"run", "--no-such-flag"}))
}
