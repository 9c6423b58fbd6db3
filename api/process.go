// File: api/process.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process lookup and control contracts shared by the controller, the
// watchdog and the platform implementations.

package api

import "fmt"

// Match is one acceptable display-title/name pair for the target process.
// An empty Title matches any window title.
type Match struct {
	Title string `yaml:"title"`
	Name  string `yaml:"name"`
}

// Target is a non-owning lookup result. It identifies a process at the moment
// of lookup and must not be kept across operations: the game can exit and
// relaunch under a new PID at any time.
type Target struct {
	PID   int
	Name  string
	Title string
}

// String renders the target for diagnostics.
func (t Target) String() string {
	return fmt.Sprintf("%s[%d]", t.Name, t.PID)
}

// Priority is the scheduling tier applied to the target process.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityRealtime
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityRealtime:
		return "realtime"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ProcessOps is the platform process-control surface. Every method takes a
// PID and resolves it afresh; implementations hold no per-process handles
// between calls.
type ProcessOps interface {
	// Discover returns the best live process for the given matches.
	// Not found is (Target{}, false, nil).
	Discover(matches []Match) (Target, bool, error)
	// SetAffinity restricts the process to the cores set in mask.
	SetAffinity(pid int, mask uint64) error
	// Priority reports the current scheduling tier.
	Priority(pid int) (Priority, error)
	// SetPriority changes the scheduling tier.
	SetPriority(pid int, p Priority) error
	// Responsive reports whether the process is servicing its main loop.
	Responsive(pid int) (bool, error)
	// Exited reports whether the process is gone.
	Exited(pid int) bool
	// Executable returns the absolute path of the process image.
	Executable(pid int) (string, error)
}

// MaskProber applies an affinity mask to the current process. It is used to
// discover which core counts the OS accepts.
type MaskProber interface {
	Probe(mask uint64) error
}
