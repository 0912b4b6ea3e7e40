package identity

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
)

// requiredCommands lists the programs each operation cannot run without.
var requiredCommands = map[string][]string{
	MACAddressID:     {"ip"},
	FilesystemUUIDID: {"findmnt", "blkid"},
	HostnameID:       {"hostnamectl"},
}

// RequireLinux fails on any operating system other than Linux.
func RequireLinux() operations.EnvironmentCheck {
	return func(_ context.Context, sys host.System) error {
		if goos := sys.OS(); goos != "linux" {
			return &operations.PrivilegeError{Reason: "unsupported operating system " + goos}
		}

		return nil
	}
}

// RequireRoot fails unless the effective user is root.
func RequireRoot() operations.EnvironmentCheck {
	return func(_ context.Context, sys host.System) error {
		if uid := sys.Geteuid(); uid != 0 {
			return &operations.PrivilegeError{
				Reason: "must run as root",
				Err:    fmt.Errorf("effective uid is %d", uid),
			}
		}

		return nil
	}
}

// RequireCommands fails when any of the named programs is not installed.
func RequireCommands(names ...string) operations.EnvironmentCheck {
	return func(_ context.Context, sys host.System) error {
		var missing []string
		for _, name := range names {
			if _, err := sys.LookPath(name); err != nil {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return &operations.PrivilegeError{Reason: "required commands not found: " + strings.Join(missing, ", ")}
		}

		return nil
	}
}

// RequiredCommands returns the sorted, de-duplicated programs needed by ops.
func RequiredCommands(ops []*operations.Operation) []string {
	var names []string
	for _, op := range ops {
		names = append(names, requiredCommands[op.ID()]...)
	}
	slices.Sort(names)

	return slices.Compact(names)
}

// DefaultEnvironmentCheck is the check run before ops: Linux, root, and the commands ops need.
func DefaultEnvironmentCheck(ops []*operations.Operation) operations.EnvironmentCheck {
	return operations.AllOf(RequireLinux(), RequireRoot(), RequireCommands(RequiredCommands(ops)...))
}
