//go:build !linux && !windows
// +build !linux,!windows

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

import "runtime"

// RegisterPlatformProbes sets the portable debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any { return runtime.GOOS })
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
