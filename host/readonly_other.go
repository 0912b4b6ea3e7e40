//go:build !linux

package host

import (
	"errors"
	"fmt"
)

func (Local) ReadOnly(path string) (bool, error) {
	return false, fmt.Errorf("mount flags of %s: %w", path, errors.ErrUnsupported)
}
