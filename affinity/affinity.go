// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral CPU affinity masks. Platform-specific probes are located
// in separate files (affinity_linux.go, affinity_windows.go, etc.) guarded by build tags.

package affinity

import (
	"math/bits"
	"strings"
)

// MaxCores is the widest mask the affinity APIs accept in one call.
const MaxCores = 64

// Mask is a set of logical cores. Core i is parked when bit i is clear.
type Mask struct {
	bits  uint64
	width int
}

// Full returns a mask with the n low-order cores set.
func Full(n int) Mask {
	if n <= 0 {
		return Mask{}
	}
	if n >= MaxCores {
		return Mask{bits: ^uint64(0), width: MaxCores}
	}
	return Mask{bits: (uint64(1) << uint(n)) - 1, width: n}
}

// Park returns a copy of m with the k lowest cores cleared. k is clamped so
// that at least one core stays enabled.
func (m Mask) Park(k int) Mask {
	if k <= 0 || m.width == 0 {
		return m
	}
	if k > m.width-1 {
		k = m.width - 1
	}
	cleared := (uint64(1) << uint(k)) - 1
	return Mask{bits: m.bits &^ cleared, width: m.width}
}

// Bits returns the raw mask value passed to the OS.
func (m Mask) Bits() uint64 { return m.bits }

// Width is the number of cores the mask describes.
func (m Mask) Width() int { return m.width }

// Count returns the number of enabled cores.
func (m Mask) Count() int { return bits.OnesCount64(m.bits) }

// Parked returns the number of cores cleared in the mask.
func (m Mask) Parked() int { return m.width - m.Count() }

// String renders the mask most significant core first, e.g. 11111100.
func (m Mask) String() string {
	if m.width == 0 {
		return "0"
	}
	var sb strings.Builder
	sb.Grow(m.width)
	for i := m.width - 1; i >= 0; i-- {
		if m.bits&(uint64(1)<<uint(i)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// SetAffinity applies mask to the current process on supported platforms.
// On unsupported platforms returns api.ErrNotSupported.
func SetAffinity(mask Mask) error {
	return setAffinityPlatform(mask.bits)
}

// OSProber probes masks against the current process.
type OSProber struct{}

// Probe implements api.MaskProber.
func (OSProber) Probe(mask uint64) error {
	return setAffinityPlatform(mask)
}
