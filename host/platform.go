package host

import (
	"context"
	"time"

	psutil "github.com/shirou/gopsutil/v3/host"
)

// Platform describes the operating system a machine runs and whether it is a guest.
type Platform struct {
	OS           string `json:"os" yaml:"os" toml:"os"`
	Distribution string `json:"distribution" yaml:"distribution" toml:"distribution"`
	Version      string `json:"version" yaml:"version" toml:"version"`
	Kernel       string `json:"kernel" yaml:"kernel" toml:"kernel"`
	// Virtualization names the hypervisor or container runtime when running as a guest.
	Virtualization string    `json:"virtualization,omitempty" yaml:"virtualization,omitempty" toml:"virtualization,omitempty"`
	BootTime       time.Time `json:"boot_time" yaml:"boot_time" toml:"boot_time"`
}

// Guest reports whether the machine runs under a hypervisor or in a container.
func (p Platform) Guest() bool { return p.Virtualization != "" }

// Platform reads the platform description through gopsutil.
func (Local) Platform(ctx context.Context) (Platform, error) {
	info, err := psutil.InfoWithContext(ctx)
	if err != nil {
		return Platform{}, err
	}

	p := Platform{
		OS:           info.OS,
		Distribution: info.Platform,
		Version:      info.PlatformVersion,
		Kernel:       info.KernelVersion,
	}
	if info.VirtualizationRole == "guest" {
		p.Virtualization = info.VirtualizationSystem
	}
	if info.BootTime > 0 {
		p.BootTime = time.Unix(int64(info.BootTime), 0).UTC()
	}

	return p, nil
}
