package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
)

const (
	// MachineIDID is the ID of the machine-id operation.
	MachineIDID = "machine-id"

	machineIDPath = "/etc/machine-id"
	machineIDTool = "systemd-machine-id-setup"
)

var machineIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// MachineIDOptions configures the machine-id operation.
type MachineIDOptions struct {
	// Value to write. Empty lets systemd generate a random id.
	Value string
}

// ValidateMachineID checks that s is 32 lowercase hex characters.
func ValidateMachineID(s string) error {
	if !machineIDPattern.MatchString(s) {
		return fmt.Errorf("invalid machine-id %q: want 32 lowercase hex characters", s)
	}

	return nil
}

func readMachineID(sys host.System) (string, error) {
	b, err := sys.ReadFile(machineIDPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

// MachineID returns the operation that regenerates /etc/machine-id.
func MachineID(opts MachineIDOptions) *operations.Operation {
	check := func(_ context.Context, sys host.System) operations.Verdict {
		if _, err := readMachineID(sys); err != nil {
			return operations.ProbeFailed(err)
		}

		ro, err := sys.ReadOnly("/etc")
		switch {
		case errors.Is(err, errors.ErrUnsupported):
		case err != nil:
			return operations.ProbeFailed(err)
		case ro:
			return operations.Unsatisfied("/etc is mounted read-only")
		}

		if opts.Value == "" {
			if _, err := sys.LookPath(machineIDTool); err != nil {
				return operations.Unsatisfiedf("%s not found", machineIDTool)
			}
		}

		return operations.Satisfied()
	}

	capture := func(_ context.Context, sys host.System) (string, error) {
		return readMachineID(sys)
	}

	apply := func(ctx context.Context, sys host.System, value string) (operations.Change, error) {
		if err := writeMachineID(ctx, sys, value); err != nil {
			return operations.Change{}, err
		}

		id, err := readBackUntil(ctx, func() (string, error) { return readMachineID(sys) }, func(got string) error {
			if value != "" && got != value {
				return fmt.Errorf("read back %q, want %q", got, value)
			}

			return ValidateMachineID(got)
		})
		if err != nil {
			return operations.Change{}, err
		}

		detail := "machine-id regenerated"
		if value != "" {
			detail = "machine-id set"
		}

		return operations.Change{Detail: detail, NewValue: id}, nil
	}

	restore := func(ctx context.Context, sys host.System, prior string) error {
		if err := ValidateMachineID(prior); err != nil {
			return err
		}

		return writeMachineID(ctx, sys, prior)
	}

	opOpts := []operations.Option{
		operations.WithRisk(operations.RiskMedium),
		operations.RequiresReboot(),
		operations.WithPrecondition(check),
		operations.WithCapture(capture),
		operations.WithRestore(restore),
	}
	if opts.Value != "" {
		opOpts = append(opOpts, operations.WithTarget(func(context.Context, host.System) (string, error) {
			if err := ValidateMachineID(opts.Value); err != nil {
				return "", err
			}

			return opts.Value, nil
		}))
	}

	return operations.NewOperation(MachineIDID, semver.MustParse("1.0.0"),
		"Regenerate the system machine-id", apply, opOpts...)
}

// writeMachineID replaces /etc/machine-id with value, or with a fresh id from systemd when
// value is empty.
func writeMachineID(ctx context.Context, sys host.System, value string) error {
	if err := sys.Remove(machineIDPath); err != nil {
		return fmt.Errorf("remove %s: %w", machineIDPath, err)
	}
	if value == "" {
		_, err := sys.Run(ctx, machineIDTool)
		return err
	}

	return sys.WriteFile(machineIDPath, []byte(value+"\n"), 0o444)
}
