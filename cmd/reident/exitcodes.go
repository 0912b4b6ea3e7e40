package main

import (
	"context"
	"errors"

	"github.com/reident/reident/operations"
	"github.com/reident/reident/pkg/commands"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailed      = 1 // An operation failed in strict mode, or a restore failed
	exitUsage       = 2 // Bad flag, argument or configuration
	exitPrivilege   = 3 // The environment check rejected the host
	exitInProgress  = 4 // Another run holds the lock
	exitInterrupted = 130
)

// exitCode maps the error returned by the command tree to a process exit code.
func exitCode(err error) int {
	var (
		usage *commands.UsageError
		perr  *operations.PrivilegeError
	)

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage):
		return exitUsage
	case errors.As(err, &perr):
		return exitPrivilege
	case errors.Is(err, operations.ErrRunInProgress):
		return exitInProgress
	case errors.Is(err, commands.ErrInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailed
	}
}
