package identity_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reident/reident/host/hosttest"
	"github.com/reident/reident/identity"
	"github.com/reident/reident/operations"
)

const (
	rootUUID  = "6f1c1a43-2b9e-4d6a-9a1e-1f3c5b7d9e21"
	swapUUID  = "0d3e8a8f-8d6c-4c9a-bf35-6a5d3d9c2a10"
	luksUUID  = "c2b0ab5e-9ad4-4f0b-8d0e-7a1d2c3b4a50"
	givenUUID = "3b241101-e2bb-4255-8caf-4136c566a962"
)

const fstab = `# <file system> <mount point> <type> <options> <dump> <pass>
UUID=` + swapUUID + ` none swap sw 0 0
UUID=` + rootUUID + ` / ext4 errors=remount-ro 0 1
`

const crypttab = `home UUID=` + luksUUID + ` none luks
root UUID=` + strings.ToUpper(rootUUID) + ` none luks
`

// fakeDisk emulates findmnt, blkid and the tune programs for a single root device.
type fakeDisk struct {
	mu     sync.Mutex
	fstype string
	uuid   string
}

func (d *fakeDisk) get() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.uuid
}

func (d *fakeDisk) findmnt(_ context.Context, args []string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch args[1] {
	case "SOURCE":
		return "/dev/vda1", nil
	case "FSTYPE":
		return d.fstype, nil
	default:
		return d.uuid, nil
	}
}

func (d *fakeDisk) blkid(context.Context, []string) (string, error) {
	return d.get(), nil
}

func (d *fakeDisk) tune(_ context.Context, args []string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.uuid = args[len(args)-2]

	return "", nil
}

func diskHost(fstype string) (*hosttest.Fake, *fakeDisk) {
	disk := &fakeDisk{fstype: fstype, uuid: rootUUID}
	sys := hosttest.New().
		SetFile("/etc/fstab", fstab).
		SetFile("/etc/crypttab", crypttab).
		Handle("findmnt", disk.findmnt).
		Handle("blkid", disk.blkid).
		Handle("tune2fs", disk.tune).
		Handle("btrfstune", disk.tune)

	return sys, disk
}

func TestFilesystemUUID_Ext4(t *testing.T) {
	t.Parallel()

	sys, disk := diskHost("ext4")
	op := identity.FilesystemUUID(identity.FilesystemOptions{UUID: strings.ToUpper(givenUUID)})

	res := runOne(t, sys, op)
	require.Equal(t, operations.StatusSuccess, res.Status, res.Detail)
	assert.Equal(t, rootUUID, res.PriorValue)
	assert.Equal(t, givenUUID, res.NewValue)
	assert.Equal(t, givenUUID, disk.get())
	assert.Contains(t, sys.Calls(), "tune2fs -U "+givenUUID+" /dev/vda1")
	assert.Equal(t,
		"/dev/vda1 now has UUID "+givenUUID+"; updated /etc/fstab, /etc/crypttab (requires_reboot=true)",
		res.Detail)

	gotFstab, _ := sys.File("/etc/fstab")
	assert.Contains(t, gotFstab, "UUID="+givenUUID+" / ext4")
	assert.Contains(t, gotFstab, "UUID="+swapUUID+" none swap", "other entries are untouched")

	gotCrypttab, _ := sys.File("/etc/crypttab")
	assert.Contains(t, gotCrypttab, "home UUID="+luksUUID)
	assert.Contains(t, gotCrypttab, "root UUID="+givenUUID)

	again := runOne(t, sys, op)
	assert.Equal(t, operations.DetailNoop, again.Detail)
}

func TestFilesystemUUID_Btrfs(t *testing.T) {
	t.Parallel()

	sys, disk := diskHost("btrfs")

	res := runOne(t, sys, identity.FilesystemUUID(identity.FilesystemOptions{}))
	require.Equal(t, operations.StatusSuccess, res.Status, res.Detail)
	assert.NotEqual(t, rootUUID, res.NewValue)
	assert.Equal(t, res.NewValue, disk.get())
	assert.Contains(t, sys.Calls(), "btrfstune -f -U "+res.NewValue+" /dev/vda1")
}

func TestFilesystemUUID_MissingCrypttab(t *testing.T) {
	t.Parallel()

	sys, _ := diskHost("ext4")
	require.NoError(t, sys.Remove("/etc/crypttab"))

	res := runOne(t, sys, identity.FilesystemUUID(identity.FilesystemOptions{UUID: givenUUID}))
	require.Equal(t, operations.StatusSuccess, res.Status, res.Detail)
	assert.Contains(t, res.Detail, "updated /etc/fstab (requires_reboot=true)")
	_, ok := sys.File("/etc/crypttab")
	assert.False(t, ok)
}

func TestFilesystemUUID_Precondition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func() *hosttest.Fake
		want  string
	}{
		{
			name: "unsupported filesystem",
			setup: func() *hosttest.Fake {
				sys, _ := diskHost("xfs")
				return sys
			},
			want: `unsupported filesystem type "xfs"`,
		},
		{
			name: "findmnt missing",
			setup: func() *hosttest.Fake {
				return hosttest.New().Install("blkid", "tune2fs")
			},
			want: "findmnt command not found",
		},
		{
			name: "tune2fs missing",
			setup: func() *hosttest.Fake {
				disk := &fakeDisk{fstype: "ext4", uuid: rootUUID}
				return hosttest.New().Handle("findmnt", disk.findmnt).Install("blkid")
			},
			want: "tune2fs command not found",
		},
		{
			name: "read-only etc",
			setup: func() *hosttest.Fake {
				sys, _ := diskHost("ext4")
				return sys.SetReadOnly("/etc")
			},
			want: "/etc is mounted read-only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := operations.Check(t.Context(), identity.FilesystemUUID(identity.FilesystemOptions{}), tt.setup())
			assert.Equal(t, operations.VerdictUnsatisfied, v.State)
			assert.Equal(t, tt.want, v.Reason)
		})
	}
}

func TestFilesystemUUID_InvalidTarget(t *testing.T) {
	t.Parallel()

	sys, disk := diskHost("ext4")

	res := runOne(t, sys, identity.FilesystemUUID(identity.FilesystemOptions{UUID: "not-a-uuid"}))
	assert.Equal(t, operations.StatusFailed, res.Status)
	assert.Contains(t, res.Detail, `resolve target value: invalid filesystem UUID "not-a-uuid"`)
	assert.Equal(t, rootUUID, disk.get())
}

func TestFilesystemUUID_Restore(t *testing.T) {
	t.Parallel()

	sys, disk := diskHost("ext4")
	op := identity.FilesystemUUID(identity.FilesystemOptions{})

	require.NoError(t, op.Restore(t.Context(), sys, givenUUID))
	assert.Equal(t, givenUUID, disk.get())
	gotFstab, _ := sys.File("/etc/fstab")
	assert.Contains(t, gotFstab, "UUID="+givenUUID+" / ext4")
}
