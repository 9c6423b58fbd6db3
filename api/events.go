// File: api/events.go
// Package api defines the load-screen transition events.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Event is a state-transition marker recognised in the game log.
type Event int

const (
	// EventEngineInit is logged once right after the game process starts.
	EventEngineInit Event = iota + 1
	// EventLoadStart marks the beginning of a load screen.
	EventLoadStart
	// EventLoadEnd marks the end of a load screen.
	EventLoadEnd
)

// String returns the event name used in logs and metric labels.
func (e Event) String() string {
	switch e {
	case EventEngineInit:
		return "engine_init"
	case EventLoadStart:
		return "load_start"
	case EventLoadEnd:
		return "load_end"
	default:
		return "unknown"
	}
}
