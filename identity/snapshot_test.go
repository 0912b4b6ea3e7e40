package identity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reident/reident/host"
	"github.com/reident/reident/host/hosttest"
	"github.com/reident/reident/identity"
)

var guest = host.Platform{
	OS:             "linux",
	Distribution:   "ubuntu",
	Version:        "24.04",
	Kernel:         "6.8.0-45-generic",
	Virtualization: "kvm",
	BootTime:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	sys, _ := diskHost("ext4")
	sys.Handle("ip", newFakeIP().handle).
		SetFile("/etc/machine-id", oldMachineID+"\n").
		SetFile("/etc/hostname", "template-vm\n").
		SetPlatform(guest)

	ids, err := identity.Snapshot(t.Context(), sys, "")
	require.NoError(t, err)
	assert.Equal(t, identity.Identifiers{
		Interface:      "eth0",
		MACAddress:     "52:54:00:12:34:56",
		MachineID:      oldMachineID,
		FilesystemUUID: rootUUID,
		Hostname:       "template-vm",
		Platform:       guest,
	}, ids)
}

func TestSnapshot_Partial(t *testing.T) {
	t.Parallel()

	sys := hosttest.New().
		SetFile("/etc/hostname", "template-vm\n").
		Respond("findmnt -no UUID /", "", errors.New("findmnt: can't read /proc/self/mountinfo"))

	ids, err := identity.Snapshot(t.Context(), sys, "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "mac address:")
	assert.ErrorContains(t, err, "filesystem uuid:")
	assert.NotContains(t, err.Error(), "machine-id:", "a missing machine-id is reported as empty")
	assert.Equal(t, identity.Identifiers{Hostname: "template-vm", Platform: host.Platform{OS: "linux"}}, ids)
}
