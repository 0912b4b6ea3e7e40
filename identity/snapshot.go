package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/reident/reident/host"
)

// Identifiers is a snapshot of the host identifiers reident manages.
type Identifiers struct {
	Interface      string `json:"interface" yaml:"interface" toml:"interface"`
	MACAddress     string `json:"mac_address" yaml:"mac_address" toml:"mac_address"`
	MachineID      string `json:"machine_id" yaml:"machine_id" toml:"machine_id"`
	FilesystemUUID string `json:"filesystem_uuid" yaml:"filesystem_uuid" toml:"filesystem_uuid"`
	Hostname       string `json:"hostname" yaml:"hostname" toml:"hostname"`

	Platform host.Platform `json:"platform" yaml:"platform" toml:"platform"`
}

// Snapshot reads the current identifiers. Identifiers that cannot be read are left empty and
// their errors are joined into the returned error, so a partial snapshot is still usable.
func Snapshot(ctx context.Context, sys host.System, iface string) (Identifiers, error) {
	var (
		ids  Identifiers
		errs []error
	)

	if l, err := lookupLink(ctx, sys, iface); err != nil {
		errs = append(errs, fmt.Errorf("mac address: %w", err))
	} else {
		ids.Interface, ids.MACAddress = l.Name, l.MAC
	}

	if id, err := readMachineID(sys); err != nil {
		errs = append(errs, fmt.Errorf("machine-id: %w", err))
	} else {
		ids.MachineID = id
	}

	if id, err := findmnt(ctx, sys, "UUID"); err != nil {
		errs = append(errs, fmt.Errorf("filesystem uuid: %w", err))
	} else {
		ids.FilesystemUUID = id
	}

	if name, err := currentHostname(ctx, sys); err != nil {
		errs = append(errs, fmt.Errorf("hostname: %w", err))
	} else {
		ids.Hostname = name
	}

	if p, err := sys.Platform(ctx); err != nil {
		errs = append(errs, fmt.Errorf("platform: %w", err))
	} else {
		ids.Platform = p
	}

	return ids, errors.Join(errs...)
}
