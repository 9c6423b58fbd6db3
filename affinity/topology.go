// File: affinity/topology.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Usable core count discovery. The OS-reported CPU count is not always the
// count the affinity API accepts (offline or parked heterogeneous cores), so
// the effective count is found by probing the current process.

package affinity

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/momentics/coreparker/api"
)

var (
	// ErrMaskRejected is returned by probers when the OS refuses a mask.
	ErrMaskRejected = errors.New("affinity: mask rejected")
	// ErrNoUsableMask means no candidate core count was accepted.
	ErrNoUsableMask = errors.New("affinity: no usable core mask")
)

// Topology is the effective core layout, computed once at startup.
type Topology struct {
	Reported int
	Cores    int
	Full     Mask
}

// Parked returns the full mask with the k lowest cores cleared, k clamped to
// [0, Cores-1].
func (t Topology) Parked(k int) Mask {
	return t.Full.Park(k)
}

// ClampPark bounds a park count to [0, Cores-1].
func (t Topology) ClampPark(k int) int {
	if k < 0 {
		return 0
	}
	if k > t.Cores-1 {
		return t.Cores - 1
	}
	return k
}

// Candidates lists the core counts Resolve tries, in order: the reported
// count first, then descending from min(64, 2*reported).
func Candidates(reported int) []int {
	if reported <= 0 {
		reported = 1
	}
	upper := 2 * reported
	if upper > MaxCores {
		upper = MaxCores
	}
	out := make([]int, 0, upper+1)
	if reported <= MaxCores {
		out = append(out, reported)
	}
	for n := upper; n >= 1; n-- {
		if n == reported {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ResolveCount returns the first candidate count accepted by p.
func ResolveCount(p api.MaskProber, reported int) (Topology, error) {
	var last error
	for _, n := range Candidates(reported) {
		full := Full(n)
		err := p.Probe(full.Bits())
		if err == nil {
			return Topology{Reported: reported, Cores: n, Full: full}, nil
		}
		last = err
	}
	return Topology{}, fmt.Errorf("%w: reported %d cores, last error: %v", ErrNoUsableMask, reported, last)
}

// ReportedCores is the logical CPU count the OS reports for this process.
func ReportedCores() int {
	return runtime.NumCPU()
}

// Resolve probes the OS-reported core count against p.
func Resolve(p api.MaskProber) (Topology, error) {
	return ResolveCount(p, ReportedCores())
}
