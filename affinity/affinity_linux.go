//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting process CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CPUSet converts a raw mask into the kernel cpu_set_t representation.
func CPUSet(mask uint64) unix.CPUSet {
	var set unix.CPUSet
	set.Zero()
	for i := 0; i < MaxCores; i++ {
		if mask&(uint64(1)<<uint(i)) != 0 {
			set.Set(i)
		}
	}
	return set
}

// setAffinityPlatform sets the calling process affinity via sched_setaffinity.
func setAffinityPlatform(mask uint64) error {
	set := CPUSet(mask)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("%w: sched_setaffinity(%#x): %v", ErrMaskRejected, mask, err)
	}
	return nil
}
