//go:build windows
// +build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation for setting process CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	modkernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procSetProcessAffinityMask = modkernel32.NewProc("SetProcessAffinityMask")
)

// SetProcessAffinityMask applies mask to the process behind h.
func SetProcessAffinityMask(h windows.Handle, mask uint64) error {
	ret, _, err := procSetProcessAffinityMask.Call(uintptr(h), uintptr(mask))
	if ret == 0 {
		return err
	}
	return nil
}

// setAffinityPlatform sets the current process affinity for Windows.
func setAffinityPlatform(mask uint64) error {
	if err := SetProcessAffinityMask(windows.CurrentProcess(), mask); err != nil {
		return fmt.Errorf("%w: SetProcessAffinityMask(%#x): %v", ErrMaskRejected, mask, err)
	}
	return nil
}
