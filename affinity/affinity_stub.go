//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.
// Returns error to indicate unavailability.

package affinity

import (
	"fmt"

	"github.com/momentics/coreparker/api"
)

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform(mask uint64) error {
	return fmt.Errorf("%w: %w", ErrMaskRejected, api.ErrNotSupported)
}
