//go:build windows
// +build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific debug introspection points.

package control

import (
	"runtime"

	"golang.org/x/sys/windows"
)

// RegisterPlatformProbes sets Windows-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any { return runtime.GOOS })
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.self_priority_class", func() any {
		class, err := windows.GetPriorityClass(windows.CurrentProcess())
		if err != nil {
			return err.Error()
		}
		return class
	})
}
