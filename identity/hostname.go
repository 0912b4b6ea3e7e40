package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
)

// HostnameID is the ID of the hostname operation.
const HostnameID = "hostname"

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// HostnameOptions configures the hostname operation.
type HostnameOptions struct {
	// Value to set. Empty picks a random sandbox-NNNN name.
	Value string
}

// ValidateHostname checks that s is a single RFC 1123 label.
func ValidateHostname(s string) error {
	if !hostnamePattern.MatchString(s) {
		return fmt.Errorf("invalid hostname %q", s)
	}

	return nil
}

// RandomHostname returns sandbox-NNNN with NNNN in [1000, 9999].
func RandomHostname() string {
	return fmt.Sprintf("sandbox-%d", 1000+rand.IntN(9000))
}

func currentHostname(ctx context.Context, sys host.System) (string, error) {
	b, err := sys.ReadFile("/etc/hostname")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if name := strings.TrimSpace(string(b)); name != "" {
		return name, nil
	}

	return sys.Run(ctx, "hostname")
}

func setHostname(ctx context.Context, sys host.System, name string) error {
	_, err := sys.Run(ctx, "hostnamectl", "set-hostname", name)
	return err
}

// Hostname returns the operation that sets a new static hostname.
func Hostname(opts HostnameOptions) *operations.Operation {
	check := func(_ context.Context, sys host.System) operations.Verdict {
		if _, err := sys.LookPath("hostnamectl"); err != nil {
			return operations.Unsatisfied("hostnamectl command not found")
		}

		return operations.Satisfied()
	}

	target := func(context.Context, host.System) (string, error) {
		if opts.Value == "" {
			return RandomHostname(), nil
		}
		if err := ValidateHostname(opts.Value); err != nil {
			return "", err
		}

		return opts.Value, nil
	}

	apply := func(ctx context.Context, sys host.System, name string) (operations.Change, error) {
		if err := setHostname(ctx, sys, name); err != nil {
			return operations.Change{}, err
		}

		return operations.Change{Detail: "hostname set to " + name, NewValue: name}, nil
	}

	return operations.NewOperation(HostnameID, semver.MustParse("1.0.0"),
		"Set a new static hostname", apply,
		operations.WithPrecondition(check),
		operations.WithCapture(currentHostname),
		operations.WithTarget(target),
		operations.WithRestore(setHostname),
	)
}
