//go:build !linux && !windows
// +build !linux,!windows

// File: internal/process/ops_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package process

import "github.com/momentics/coreparker/api"

// NewOS reports that process control is unavailable on this platform.
func NewOS() (api.ProcessOps, error) {
	return nil, api.NewError(api.ErrCodeNotSupported, "process control not supported").WithCause(api.ErrNotSupported)
}
