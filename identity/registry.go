// Package identity implements the host identity operations: MAC address, machine-id, root
// filesystem UUID, hostname and cache purge.
package identity

import (
	"github.com/reident/reident/operations"
)

// Options configures every identity operation.
type Options struct {
	MAC        MACOptions
	MachineID  MachineIDOptions
	Filesystem FilesystemOptions
	Hostname   HostnameOptions
	Cache      CacheOptions
}

// Operations returns the identity operations in their execution order.
func Operations(opts Options) []*operations.Operation {
	return []*operations.Operation{
		MACAddress(opts.MAC),
		MachineID(opts.MachineID),
		FilesystemUUID(opts.Filesystem),
		Hostname(opts.Hostname),
		CachePurge(opts.Cache),
	}
}

// DefaultRegistry returns a registry holding every identity operation.
func DefaultRegistry(opts Options) (*operations.Registry, error) {
	return operations.NewRegistry(Operations(opts)...)
}
