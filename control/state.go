// File: control/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

// State is the controller's view of the game's load phase.
type State int32

const (
	StateIdle State = iota
	StateLoading
)

// String returns the state name.
func (s State) String() string {
	if s == StateLoading {
		return "loading"
	}
	return "idle"
}
