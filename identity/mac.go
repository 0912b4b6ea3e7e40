package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/reident/reident/host"
	"github.com/reident/reident/operations"
)

// MACAddressID is the ID of the MAC address operation.
const MACAddressID = "mac-address"

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)

// MACOptions configures the MAC address operation.
type MACOptions struct {
	// Interface to change. Empty selects the first eligible interface.
	Interface string
	// Address to set. Empty generates a random locally administered unicast address.
	Address string
}

// ValidateMAC checks that s is six hex octets separated by ':' or '-'.
func ValidateMAC(s string) error {
	if !macPattern.MatchString(s) {
		return fmt.Errorf("invalid MAC address %q", s)
	}

	return nil
}

// NormalizeMAC validates s and returns it in lowercase colon form.
func NormalizeMAC(s string) (string, error) {
	if err := ValidateMAC(s); err != nil {
		return "", err
	}

	return strings.ToLower(strings.ReplaceAll(s, "-", ":")), nil
}

// RandomMAC returns a random MAC address. locallyAdministered sets bit 1 of the first octet,
// unicast clears bit 0.
func RandomMAC(locallyAdministered, unicast bool) string {
	b := make([]byte, 6)
	_, _ = rand.Read(b) // never fails

	if locallyAdministered {
		b[0] |= 0x02
	} else {
		b[0] &^= 0x02
	}
	if unicast {
		b[0] &= 0xFE
	}

	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

// Link is one entry of `ip -o link show`.
type Link struct {
	Name     string
	MAC      string
	State    string
	Type     string
	Loopback bool
}

// Eligible reports whether the link's MAC address can be changed.
func (l Link) Eligible() bool {
	return !l.Loopback && l.Type == "ether" && l.MAC != ""
}

// ParseLinks parses the one-line-per-link output of `ip -o link show`. Lines that do not look
// like a link are ignored.
func ParseLinks(out string) []Link {
	var links []Link
	for line := range strings.Lines(out) {
		fields := strings.SplitN(line, ":", 3)
		if len(fields) < 3 {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimSpace(fields[1]), "@")
		if name == "" || strings.ContainsAny(name, " \t") {
			continue
		}

		l := Link{Name: name, State: "UNKNOWN"}
		l.Loopback = name == "lo" || strings.Contains(fields[2], "LOOPBACK")
		toks := strings.Fields(fields[2])
		for i, tok := range toks {
			switch {
			case tok == "state" && i+1 < len(toks):
				l.State = toks[i+1]
			case strings.HasPrefix(tok, "link/") && l.Type == "":
				l.Type = strings.TrimPrefix(tok, "link/")
				if i+1 < len(toks) {
					if mac, err := NormalizeMAC(toks[i+1]); err == nil {
						l.MAC = mac
					}
				}
			}
		}
		links = append(links, l)
	}

	return links
}

var (
	errNoInterface      = errors.New("no eligible network interface")
	errUnknownInterface = errors.New("interface does not exist")
)

// lookupLink returns the link named iface, or the first eligible one when iface is empty.
func lookupLink(ctx context.Context, sys host.System, iface string) (Link, error) {
	out, err := sys.Run(ctx, "ip", "-o", "link", "show")
	if err != nil {
		return Link{}, err
	}

	for _, l := range ParseLinks(out) {
		if iface == "" && l.Eligible() {
			return l, nil
		}
		if iface != "" && l.Name == iface {
			return l, nil
		}
	}
	if iface == "" {
		return Link{}, errNoInterface
	}

	return Link{}, fmt.Errorf("%s: %w", iface, errUnknownInterface)
}

// MACAddress returns the operation that changes the MAC address of a network interface.
func MACAddress(opts MACOptions) *operations.Operation {
	iface := strings.TrimSpace(opts.Interface)

	check := func(ctx context.Context, sys host.System) operations.Verdict {
		if goos := sys.OS(); goos != "linux" {
			return operations.Unsatisfiedf("requires linux, running on %s", goos)
		}
		if _, err := sys.LookPath("ip"); err != nil {
			return operations.Unsatisfied("ip command not found")
		}

		l, err := lookupLink(ctx, sys, iface)
		switch {
		case errors.Is(err, errNoInterface):
			return operations.Unsatisfied(err.Error())
		case errors.Is(err, errUnknownInterface):
			return operations.Unsatisfiedf("interface %s does not exist", iface)
		case err != nil:
			return operations.ProbeFailed(err)
		case l.Loopback:
			return operations.Unsatisfiedf("interface %s is a loopback device", l.Name)
		case l.Type != "ether":
			return operations.Unsatisfiedf("interface %s is not an ethernet device", l.Name)
		}

		return operations.Satisfied()
	}

	capture := func(ctx context.Context, sys host.System) (string, error) {
		l, err := lookupLink(ctx, sys, iface)
		if err != nil {
			return "", err
		}

		return l.MAC, nil
	}

	target := func(context.Context, host.System) (string, error) {
		if opts.Address == "" {
			return RandomMAC(true, true), nil
		}

		return NormalizeMAC(opts.Address)
	}

	apply := func(ctx context.Context, sys host.System, mac string) (operations.Change, error) {
		l, err := lookupLink(ctx, sys, iface)
		if err != nil {
			return operations.Change{}, err
		}
		if err := setMAC(ctx, sys, l.Name, mac); err != nil {
			return operations.Change{}, err
		}

		return operations.Change{Detail: fmt.Sprintf("%s now uses %s", l.Name, mac), NewValue: mac}, nil
	}

	restore := func(ctx context.Context, sys host.System, prior string) error {
		mac, err := NormalizeMAC(prior)
		if err != nil {
			return err
		}
		l, err := lookupLink(ctx, sys, iface)
		if err != nil {
			return err
		}

		return setMAC(ctx, sys, l.Name, mac)
	}

	return operations.NewOperation(MACAddressID, semver.MustParse("1.0.0"),
		"Assign a new MAC address to a network interface", apply,
		operations.WithRisk(operations.RiskMedium),
		operations.WithPrecondition(check),
		operations.WithCapture(capture),
		operations.WithTarget(target),
		operations.WithRestore(restore),
	)
}

// setMAC takes the interface down, sets the address and brings it back up, then waits for the
// kernel to report the new address. The interface is brought up again even when setting the
// address fails.
func setMAC(ctx context.Context, sys host.System, iface, mac string) error {
	if _, err := sys.Run(ctx, "ip", "link", "set", "dev", iface, "down"); err != nil {
		return err
	}
	_, setErr := sys.Run(ctx, "ip", "link", "set", "dev", iface, "address", mac)
	if _, err := sys.Run(ctx, "ip", "link", "set", "dev", iface, "up"); err != nil {
		return errors.Join(setErr, err)
	}
	if setErr != nil {
		return setErr
	}

	return readBack(ctx, mac, func() (string, error) {
		l, err := lookupLink(ctx, sys, iface)
		return l.MAC, err
	})
}
