// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"encoding/json"
	"net/http"
	"sync"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any)
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// ServeHTTP writes DumpState as JSON.
func (dp *DebugProbes) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dp.DumpState())
}

// RegisterStateProbes publishes controller, tunable and watchdog state.
func RegisterStateProbes(dp *DebugProbes, c *Controller, t *Tunable, w *Watchdog) {
	dp.RegisterProbe("state", func() any { return c.State().String() })
	dp.RegisterProbe("mask.loading", func() any { return c.Mask(StateLoading).String() })
	dp.RegisterProbe("mask.idle", func() any { return c.Mask(StateIdle).String() })
	dp.RegisterProbe("cores_to_park", func() any { return t.Get() })
	dp.RegisterProbe("topology.cores", func() any { return c.Topology().Cores })
	dp.RegisterProbe("topology.reported", func() any { return c.Topology().Reported })
	if w != nil {
		dp.RegisterProbe("realtime", func() any { return w.Realtime() })
	}
	RegisterPlatformProbes(dp)
}
