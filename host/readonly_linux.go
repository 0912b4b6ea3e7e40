//go:build linux

package host

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ReadOnly inspects the mount flags of the filesystem holding path.
func (Local) ReadOnly(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, fmt.Errorf("statfs %s: %w", path, err)
	}

	return st.Flags&unix.ST_RDONLY != 0, nil
}
